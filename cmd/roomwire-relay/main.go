// Command roomwire-relay runs the relay server: the shared message
// substrate that stores sealed per-address histories and the published
// key registry.
package main

import (
	"flag"

	"github.com/roomwire/roomwire-go/relay/config"
	"github.com/roomwire/roomwire-go/relay/server"
	"github.com/roomwire/roomwire-go/relay/storage"
)

func main() {
	var cfgFile string
	flag.StringVar(&cfgFile, "config", "config.json", "config file")
	flag.Parse()

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		panic(err)
	}

	var store storage.Storage
	if cfg.RedisServer.Addr != "" {
		store, err = storage.NewRedisStorage(cfg.RedisServer)
		if err != nil {
			panic(err)
		}
	} else {
		store = storage.NewInMemoryStorage()
	}

	s := server.NewServer(cfg.Port, store)
	if err := s.StartServer(); err != nil {
		panic(err)
	}

	if err := store.Close(); err != nil {
		panic(err)
	}
}
