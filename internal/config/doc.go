// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A minimal file:
//
//	instance:
//	  id: booksync-1
//	feed:
//	  ws_url: wss://stream.example.com/ws
//	sync:
//	  symbols: [btcusdt, ethusdt]
//
// Every other field has a default; see defaults.go.
package config
