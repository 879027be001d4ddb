package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	logarmor "github.com/TrustWeave/LogArmor"
	applog "github.com/TrustWeave/LogArmor/internal/logger"
	"github.com/TrustWeave/LogArmor/pkg/config"
	"github.com/TrustWeave/LogArmor/pkg/types"
	"github.com/TrustWeave/LogArmor/pkg/version"
)

func main() {
	configDir := flag.String("config", "", "directory containing config.yaml")
	source := flag.String("source", "stdin", "source id charged in the security monitor")
	analyze := flag.Bool("analyze", false, "emit a JSON security analysis per line instead of rewriting")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo())
		return
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := applog.NewLogger()

	if *configDir != "" {
		if err := config.Load(*configDir); err != nil {
			logger.Fatalf("Failed to load config: %v", err)
		}
	}

	engine, err := logarmor.NewEngine(logger)
	if err != nil {
		logger.Fatalf("Failed to build engine: %v", err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := process(ctx, engine, logger, os.Stdin, os.Stdout, *source, *analyze); err != nil {
		logger.Fatalf("Processing failed: %v", err)
	}
}

// process runs the engine over one log line per input line. In rewrite mode
// the sanitized line goes to out and violations are reported through the
// logger; in analyze mode each line yields one JSON analysis document.
func process(ctx context.Context, engine *logarmor.Engine, logger *logrus.Logger, in io.Reader, out io.Writer, source string, analyze bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		line := scanner.Text()

		if analyze {
			if err := enc.Encode(engine.Analyze(line)); err != nil {
				return err
			}
			continue
		}

		sanitized, violations := engine.Sanitize(line)
		if _, err := fmt.Fprintln(out, sanitized); err != nil {
			return err
		}
		if len(violations) == 0 {
			continue
		}
		logger.WithFields(logrus.Fields{
			"source":       source,
			"violations":   len(violations),
			"max_severity": string(types.MaxSeverity(violations)),
		}).Warn("Log line sanitized")

		if alert := engine.Monitor().Record(source, violations); alert != nil {
			logger.WithFields(logrus.Fields{
				"source":     alert.Source,
				"violations": alert.ViolationCount,
				"alert_id":   alert.ID,
			}).Error("Security alert raised for source")
		}
	}
	return scanner.Err()
}
