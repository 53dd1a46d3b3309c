// Comando migrate: aplica el esquema embebido sobre la base configurada.
//
//	migrate up | down | version | steps N | force V
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jhoicas/feria-api/internal/infrastructure/migration"
	"github.com/jhoicas/feria-api/pkg/config"
	"github.com/jhoicas/feria-api/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "feria-migrate"})

	mg, err := migration.New(cfg.DB.ConnectionString(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar migraciones")
	}
	switch os.Args[1] {
	case "up":
		err = mg.Up()
	case "down":
		err = mg.Down()
	case "steps":
		err = withInt(func(n int) error { return mg.Steps(n) })
	case "force":
		err = withInt(func(n int) error { return mg.Force(n) })
	case "version":
		var (
			v     uint
			dirty bool
		)
		v, dirty, err = mg.Version()
		if err == nil {
			log.Info().Uint("version", v).Bool("dirty", dirty).Msg("versión actual")
		}
	default:
		usage()
	}
	if cerr := mg.Close(); cerr != nil {
		log.Error().Err(cerr).Msg("cerrar migraciones")
	}
	if err != nil {
		log.Error().Err(err).Str("cmd", os.Args[1]).Msg("migración fallida")
		os.Exit(1)
	}
}

func withInt(fn func(n int) error) error {
	if len(os.Args) < 3 {
		usage()
	}
	n, err := strconv.Atoi(os.Args[2])
	if err != nil {
		return fmt.Errorf("argumento inválido %q: %w", os.Args[2], err)
	}
	return fn(n)
}

func usage() {
	fmt.Fprintln(os.Stderr, "uso: migrate up | down | version | steps N | force V")
	os.Exit(2)
}
