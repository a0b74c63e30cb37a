// Package config provides configuration parsing for the wirecall command.
//
// The configuration is stored in wirecall.json, found in the working
// directory or one of its parents. This package handles loading, saving,
// and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "http": "https://platform.example.com/api",
//	    "ws": "wss://platform.example.com/ws"
//	  },
//	  "auth": {
//	    "tokenEnv": "WIRECALL_TOKEN"
//	  },
//	  "headers": {
//	    "X-Workspace": "research"
//	  },
//	  "timeouts": {
//	    "handshake": "10s",
//	    "write": "10s",
//	    "ping": "30s"
//	  },
//	  "limits": {
//	    "maxMessageSize": 67108864,
//	    "maxSegmentSize": 1073741824
//	  },
//	  "metrics": {
//	    "listen": ":9090"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Server:", cfg.Server.HTTP)
package config
