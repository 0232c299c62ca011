// Package config loads the wifiprov YAML configuration.
//
// The file lives in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/wifiprov/config.yaml or $HOME/.config/wifiprov/config.yaml
//   - macOS: $HOME/.config/wifiprov/config.yaml
//   - Windows: %LOCALAPPDATA%\wifiprov\config.yaml
//
// A missing file is not an error; Load returns Default(). Values may
// reference environment variables as ${VAR}.
//
// Example:
//
//	version: 1
//	storage:
//	  dir: ${HOME}/.local/share/wifiprov
//	access_point:
//	  name: sensor-setup
//	portal:
//	  addr: ":8080"
//	  timeout: 5m
//	  advertise: true
//	reconnect:
//	  min_interval: 5s
//	parameters:
//	  - id: mqtt_server
//	    placeholder: MQTT server
//	    buffer_size: 40
//
// Wi-Fi credentials are never written to this file.
package config
