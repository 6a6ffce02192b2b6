// Package main provides the tide model HTTP server. It stages a tide
// model into memory at startup and serves harmonic constants from it.
package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	httpHandler "go.ngs.io/tidemodel/internal/http"
	"go.ngs.io/tidemodel/internal/usecase"
)

const version = "0.1.0"

// Config is the server configuration, loaded from TIDEMODEL_* variables.
type Config struct {
	Port string `default:"8080"`

	// GridFile is the model grid file path.
	GridFile string `split_words:"true" required:"true"`
	// ModelFiles is a comma-separated list of constituent file paths.
	ModelFiles []string `split_words:"true" required:"true"`
	// Format of the model files: OTIS, ATLAS or TMD3.
	Format string `default:"OTIS"`
	// Kind is the tidal variable to serve: z, u, U, v or V.
	Kind string `default:"z"`
	// Projection is the PROJ definition of the model grid. Empty means
	// geographic coordinates.
	Projection string
	// ApplyFlexure scales elevations by the ice shelf flexure factor of
	// TMD3 models.
	ApplyFlexure bool `split_words:"true"`

	LogLevel string `split_words:"true" default:"info"`
}

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()
	if *showVersion {
		fmt.Printf("tidemodel version %s\n", version)
		return
	}

	log := logrus.New()

	var cfg Config
	if err := envconfig.Process("tidemodel", &cfg); err != nil {
		log.WithError(err).Fatal("loading configuration")
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("parsing log level")
	}
	log.SetLevel(level)

	extractor, err := usecase.NewExtractor(usecase.Config{
		GridFile:     cfg.GridFile,
		ModelFiles:   cfg.ModelFiles,
		Format:       usecase.Format(cfg.Format),
		Kind:         usecase.Kind(cfg.Kind),
		Projection:   cfg.Projection,
		ApplyFlexure: cfg.ApplyFlexure,
	})
	if err != nil {
		log.WithError(err).Fatal("configuring model")
	}

	log.WithFields(logrus.Fields{
		"grid":   cfg.GridFile,
		"files":  strings.Join(cfg.ModelFiles, ","),
		"format": cfg.Format,
		"kind":   cfg.Kind,
	}).Info("staging tide model")
	model, err := extractor.ReadConstants()
	if err != nil {
		log.WithError(err).Fatal("staging tide model")
	}
	log.WithField("constituents", strings.Join(model.Constituents.Names(), ",")).
		Info("tide model staged")

	router := httpHandler.SetupRouter(model, log)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.WithField("addr", addr).Info("server listening")
	if err := router.Run(addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
