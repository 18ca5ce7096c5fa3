package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"pettracker/internal/app"
	"pettracker/internal/config"
)

func main() {
	cliApp := &cli.App{
		Name:  "pettracker",
		Usage: "watch camera streams for pets and record what is seen",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv file to load before reading the environment (repeatable)",
				Value: cli.NewStringSlice(".env"),
			},
			&cli.IntFlag{Name: "port", Usage: "override PORT"},
			&cli.StringFlag{Name: "log-level", Usage: "override LOG_LEVEL (debug, info, warning, error)"},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the detection pipeline and the HTTP API",
				Action: serve,
			},
			{
				Name:   "cameras",
				Usage:  "print the cameras parsed from CAM_PROXY_CONFIG and exit",
				Action: listCameras,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatalf("pettracker: %v", err)
	}
}

func loadConfig(c *cli.Context) *config.Config {
	cfg := config.Load(c.StringSlice("env-file")...)
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	return cfg
}

func serve(c *cli.Context) error {
	application, err := app.NewApp(loadConfig(c))
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return application.Run(context.Background())
}

func listCameras(c *cli.Context) error {
	cfg := loadConfig(c)
	if cfg.CameraConfigErr != nil {
		return cli.Exit(cfg.CameraConfigErr.Error(), 1)
	}
	if len(cfg.Cameras) == 0 {
		fmt.Println("No cameras configured")
		return nil
	}
	for _, cam := range cfg.Cameras {
		fmt.Printf("%s\t%s\n", cam.ID, cam.URL)
	}
	return nil
}
