package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xtxerr/feedlog/internal/loader"
	"github.com/xtxerr/feedlog/internal/stream"
)

// flags holds command-line values. Only flags that were set override the
// config file.
type flags struct {
	configPath string

	consumerKey       string
	consumerSecret    string
	accessToken       string
	accessTokenSecret string

	streamType            modeValue
	transport             string
	endpoint              string
	parametersFilename    string
	checkForNewParameters bool

	outputDirectory  string
	rotationInterval string

	pidFile   string
	logFile   string
	logLevel  string
	logFormat string
}

func (f *flags) register(cmd *cobra.Command) {
	fs := cmd.Flags()

	fs.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file")

	fs.StringVar(&f.consumerKey, "consumer-key", "", "the consumer key (or FEEDLOG_CONSUMER_KEY)")
	fs.StringVar(&f.consumerSecret, "consumer-secret", "", "the consumer key secret (or FEEDLOG_CONSUMER_SECRET)")
	fs.StringVar(&f.accessToken, "access-token", "", "the access token (or FEEDLOG_ACCESS_TOKEN)")
	fs.StringVar(&f.accessTokenSecret, "access-token-secret", "", "the access token secret (or FEEDLOG_ACCESS_TOKEN_SECRET)")

	fs.Var(&f.streamType, "stream-type", "the type of stream to run: sample, location or keyword")
	fs.StringVar(&f.transport, "transport", "", "upstream transport: http or websocket")
	fs.StringVar(&f.endpoint, "endpoint", "", "upstream base URL")
	fs.StringVar(&f.parametersFilename, "parameters-filename", "", "file containing parameters for the stream (required for location and keyword)")
	fs.BoolVar(&f.checkForNewParameters, "check-for-new-parameters", false, "reconnect with new parameters when the parameters file changes")

	fs.StringVar(&f.outputDirectory, "output-directory", "", "where to save the output files")
	fs.StringVar(&f.rotationInterval, "rotation-interval", "", "start a new file after this long (seconds or Go duration)")

	fs.StringVar(&f.pidFile, "pid-file", "", "filename to store the process id")
	fs.StringVar(&f.logFile, "log", "", "log filename (default: write to console)")
	fs.StringVar(&f.logLevel, "log-level", "", "CRITICAL, DEBUG, ERROR, FATAL, INFO or WARNING")
	fs.StringVar(&f.logFormat, "log-format", "", "text, json or auto")
}

// apply copies every flag that was set on fs into cfg.
func (f *flags) apply(fs *pflag.FlagSet, cfg *loader.Config) error {
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}

	set("consumer-key", &cfg.Credentials.ConsumerKey, f.consumerKey)
	set("consumer-secret", &cfg.Credentials.ConsumerSecret, f.consumerSecret)
	set("access-token", &cfg.Credentials.AccessToken, f.accessToken)
	set("access-token-secret", &cfg.Credentials.AccessTokenSecret, f.accessTokenSecret)

	set("stream-type", &cfg.Stream.Mode, f.streamType.String())
	set("transport", &cfg.Stream.Transport, f.transport)
	set("endpoint", &cfg.Stream.Endpoint, f.endpoint)
	set("parameters-filename", &cfg.Stream.ParametersFile, f.parametersFilename)
	if fs.Changed("check-for-new-parameters") {
		cfg.Stream.CheckForNewParameters = f.checkForNewParameters
	}

	set("output-directory", &cfg.Output.Directory, f.outputDirectory)
	if fs.Changed("rotation-interval") {
		d, err := loader.ParseDuration(f.rotationInterval)
		if err != nil {
			return err
		}
		cfg.Output.RotationInterval = loader.Duration(d)
	}

	set("pid-file", &cfg.PIDFile, f.pidFile)
	set("log", &cfg.Logging.File, f.logFile)
	set("log-level", &cfg.Logging.Level, f.logLevel)
	set("log-format", &cfg.Logging.Format, f.logFormat)
	return nil
}

// modeValue is a pflag.Value restricted to the stream modes.
type modeValue struct {
	mode stream.Mode
}

var _ pflag.Value = (*modeValue)(nil)

func (m *modeValue) String() string { return string(m.mode) }

func (m *modeValue) Set(s string) error {
	mode, err := stream.ParseMode(s)
	if err != nil {
		return err
	}
	m.mode = mode
	return nil
}

func (m *modeValue) Type() string {
	names := make([]string, len(stream.Modes))
	for i, mode := range stream.Modes {
		names[i] = string(mode)
	}
	return strings.Join(names, "|")
}
