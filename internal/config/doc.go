// Package config loads the CRAS client configuration.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional YAML file, and CRAS_* environment variables.
//
// Example configuration:
//
//	server:
//	  socket_dir: /run/cras
//	stream:
//	  direction: playback
//	  block_size: 480
//	  rate: 48000
//	  channels: 2
//	  format: S16_LE
//	  periods: 4
//	logging:
//	  level: info
//	  format: text
//	metrics:
//	  enabled: true
//	  address: ":9464"
package config
