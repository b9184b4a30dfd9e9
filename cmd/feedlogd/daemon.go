package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/xtxerr/feedlog/config"
	"github.com/xtxerr/feedlog/internal/loader"
	"github.com/xtxerr/feedlog/internal/logging"
	"github.com/xtxerr/feedlog/internal/params"
	"github.com/xtxerr/feedlog/internal/storage/rotating"
	"github.com/xtxerr/feedlog/internal/stream"
	"github.com/xtxerr/feedlog/internal/supervisor"
)

// runDaemon wires the writer, the stream client and the supervisor, then
// blocks until a fatal fault or ctx cancellation. Parameter problems are
// reported before any connection is attempted.
func runDaemon(ctx context.Context, cfg *loader.Config, log *slog.Logger) error {
	var (
		initial *params.Parameters
		source  supervisor.ParameterSource
	)
	if cfg.UsesParameters() {
		src := params.NewSource(cfg.Stream.ParametersFile, cfg.ParametersKind())
		p, err := src.Load()
		if err != nil {
			return fmt.Errorf("load stream parameters: %w", err)
		}
		log.Info("loaded stream parameters",
			"source", p.Source, "kind", p.Kind.String(), "values", p.Len(),
			"check_for_changes", cfg.ChangeDetection())
		initial = p
		if cfg.ChangeDetection() {
			source = src
		}
	}

	if cfg.PIDFile != "" {
		if err := writePIDFile(cfg.PIDFile); err != nil {
			return err
		}
		defer removePIDFile(cfg.PIDFile, log)
	}

	writer, err := rotating.New(rotating.Options{
		Dir:              cfg.Output.Directory,
		Interval:         cfg.Output.RotationInterval.Duration(),
		CompressionLevel: cfg.Output.CompressionLevel,
		BufferSize:       int(cfg.Output.BufferSize.Bytes()),
		FsyncOnClose:     cfg.Output.FsyncOnClose,
		Logger:           logging.Component("writer"),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Error("close writer", "error", err)
		}
	}()

	client, err := stream.New(stream.Config{
		Transport:   cfg.Stream.Transport,
		Endpoint:    cfg.Stream.Endpoint,
		Credentials: cfg.Credentials.Stream(),
		MaxLineSize: int(cfg.Stream.MaxLineSize.Bytes()),
		Logger:      logging.Component("stream"),
	})
	if err != nil {
		return err
	}

	sup, err := supervisor.New(supervisor.Options{
		Client: client,
		Sink:   writer,
		Mode:   cfg.Mode(),
		Params: initial,
		Source: source,
		Logger: logging.Component("supervisor"),
	})
	if err != nil {
		return err
	}

	runErr := sup.Run(ctx)

	ws, ss := writer.Stats(), sup.Stats()
	log.Info("stream stopped",
		"connects", ss.Connects,
		"reconnects", ss.Reconnects,
		"reloads", ss.Reloads,
		"files_created", ws.FilesCreated,
		"records_written", ws.RecordsWritten,
		"records_filtered", ws.RecordsFiltered,
		"bytes_written", ws.BytesWritten)
	return runErr
}

func writePIDFile(path string) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), config.DefaultFilePerm); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

func removePIDFile(path string, log *slog.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("remove pid file", "path", path, "error", err)
	}
}
