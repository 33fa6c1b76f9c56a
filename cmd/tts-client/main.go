// main package for the tts-capability command-line client
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-capability/internal/client"
	"github.com/book-expert/tts-capability/internal/core"
)

// Flag names.
const (
	flagServer     = "server"
	flagText       = "text"
	flagChunks     = "chunks"
	flagOutput     = "output"
	flagEngine     = "engine"
	flagVoice      = "voice"
	flagLanguage   = "language"
	flagSpeaker    = "speaker"
	flagWorkers    = "workers"
	flagTimeout    = "timeout"
	flagLogsDir    = "logs-dir"
	flagHealth     = "health"
	flagCapability = "capability"
	flagVoices     = "voices"
)

const (
	envServerURL      = "TTS_SERVER_URL"
	defaultServerURL  = "http://localhost:10200"
	defaultOutputFile = "output.wav"
	defaultOutputDir  = "audio"
	logFileName       = "tts-client.log"
	noSpeaker         = -1
)

var (
	errEitherTextOrChunks = errors.New("either --text or --chunks must be provided")
	errCannotSpecifyBoth  = errors.New("cannot specify both --text and --chunks")
	errTooManyQueries     = errors.New("only one of --health, --capability or --voices may be given")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	server     string
	text       string
	chunks     string
	output     string
	engine     string
	voice      string
	language   string
	speaker    int
	workers    int
	timeout    time.Duration
	logsDir    string
	health     bool
	capability bool
	voices     bool
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	err = validateFlags(flags)
	if err != nil {
		return err
	}

	log, err := logger.New(flags.logsDir, logFileName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Close() }()

	httpClient := client.NewHTTPClient(flags.server, flags.timeout)
	ctx := context.Background()

	log.Info("TTS client initialized for %s", flags.server)

	switch {
	case flags.health:
		view, healthErr := httpClient.Health(ctx)
		if healthErr != nil {
			return fmt.Errorf("health check failed: %w", healthErr)
		}

		return printJSON(stdout, view)
	case flags.capability:
		view, capabilityErr := httpClient.Capability(ctx)
		if capabilityErr != nil {
			return fmt.Errorf("capability query failed: %w", capabilityErr)
		}

		return printJSON(stdout, view)
	case flags.voices:
		return printVoices(ctx, httpClient, flags.engine, stdout)
	}

	batch := client.NewBatch(httpClient, flags.workers, log)
	req := buildRequest(flags)

	if flags.text != "" {
		outputPath := flags.output
		if outputPath == "" {
			outputPath = defaultOutputFile
		}

		err = batch.ProcessSingle(ctx, req, outputPath)
		if err != nil {
			return fmt.Errorf("failed to process text: %w", err)
		}

		fmt.Fprintf(stdout, "Generated: %s\n", outputPath)

		return nil
	}

	outputDir := flags.output
	if outputDir == "" {
		outputDir = defaultOutputDir
	}

	err = batch.ProcessChunks(ctx, flags.chunks, outputDir, req)
	if err != nil {
		return fmt.Errorf("failed to process chunks: %w", err)
	}

	fmt.Fprintf(stdout, "Generated audio files in: %s\n", outputDir)

	return nil
}

// parseFlags parses args into appFlags.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	serverDefault := os.Getenv(envServerURL)
	if serverDefault == "" {
		serverDefault = defaultServerURL
	}

	flagSet := flag.NewFlagSet("tts-client", flag.ContinueOnError)
	flagSet.StringVar(&flags.server, flagServer, serverDefault, "Base URL of the TTS service")
	flagSet.StringVar(&flags.text, flagText, "", "Text to convert to speech")
	flagSet.StringVar(&flags.chunks, flagChunks, "", "JSON file containing text chunks to process")
	flagSet.StringVar(&flags.output, flagOutput, "", "Output file (--text) or directory (--chunks)")
	flagSet.StringVar(&flags.engine, flagEngine, "", "Engine: neural or classic")
	flagSet.StringVar(&flags.voice, flagVoice, "", "Neural voice id")
	flagSet.StringVar(&flags.language, flagLanguage, "", "Classic engine language code")
	flagSet.IntVar(&flags.speaker, flagSpeaker, noSpeaker, "Speaker id for multi-speaker models")
	flagSet.IntVar(&flags.workers, flagWorkers, 2, "Concurrent requests for --chunks")
	flagSet.DurationVar(&flags.timeout, flagTimeout, 2*time.Minute, "Per-request timeout")
	flagSet.StringVar(&flags.logsDir, flagLogsDir, os.TempDir(), "Directory for the client log")
	flagSet.BoolVar(&flags.health, flagHealth, false, "Print service health and exit")
	flagSet.BoolVar(&flags.capability, flagCapability, false, "Print the capability document and exit")
	flagSet.BoolVar(&flags.voices, flagVoices, false, "List voices for --engine and exit")

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, err
	}

	return flags, nil
}

// validateFlags checks that exactly one action was requested.
func validateFlags(flags appFlags) error {
	queries := 0

	for _, set := range []bool{flags.health, flags.capability, flags.voices} {
		if set {
			queries++
		}
	}

	if queries > 1 {
		return errTooManyQueries
	}

	if queries == 1 {
		return nil
	}

	if flags.text == "" && flags.chunks == "" {
		return errEitherTextOrChunks
	}

	if flags.text != "" && flags.chunks != "" {
		return errCannotSpecifyBoth
	}

	return nil
}

// buildRequest returns the request template described by the flags.
func buildRequest(flags appFlags) core.SynthesisRequest {
	req := core.SynthesisRequest{
		Text:     flags.text,
		Engine:   flags.engine,
		Voice:    flags.voice,
		Language: flags.language,
	}

	if flags.speaker != noSpeaker {
		speaker := flags.speaker
		req.Speaker = &speaker
	}

	return req
}

func printVoices(ctx context.Context, httpClient *client.HTTPClient, engine string, stdout io.Writer) error {
	kind, err := core.ParseEngine(engine)
	if err != nil {
		return err
	}

	if kind == core.EngineClassic {
		list, listErr := httpClient.ClassicVoices(ctx)
		if listErr != nil {
			return fmt.Errorf("failed to list voices: %w", listErr)
		}

		return printJSON(stdout, list)
	}

	list, err := httpClient.NeuralVoices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}

	return printJSON(stdout, list)
}

func printJSON(stdout io.Writer, value any) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("failed to print response: %w", err)
	}

	return nil
}
