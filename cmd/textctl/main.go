// Command textctl manages the sentence corpus: it imports source
// sentences for volunteers to translate and reports corpus progress.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
	"github.com/baseresearch/echopod-companion-chatbot/internal/pkg/env"
	"github.com/baseresearch/echopod-companion-chatbot/internal/store"
	"github.com/google/uuid"
)

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("textctl", flag.ContinueOnError)
	file := fs.String("file", "", "corpus file to import, one sentence per line")
	lang := fs.String("lang", "en", "language code of the imported sentences")
	stats := fs.Bool("stats", false, "print corpus statistics")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *file == "" && !*stats {
		fs.Usage()
		return fmt.Errorf("nothing to do: pass -file or -stats")
	}

	db, err := store.NewPostgresDB(store.PostgresConfig{
		Host:     env.String("DB_HOST", "localhost"),
		Port:     strconv.Itoa(env.Int("DB_PORT", 5432)),
		User:     env.String("DB_USER", "postgres"),
		Password: env.RequireString("DB_PASSWORD"),
		DB:       env.String("DB_NAME", "echopod"),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer db.Close()

	pgs := store.NewPostgresStore(db)

	if *file != "" {
		n, err := importSentences(ctx, pgs, *file, model.Lang(*lang))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "imported %d sentences\n", n)
	}

	if *stats {
		if err := printStats(ctx, pgs, out); err != nil {
			return err
		}
	}

	return nil
}

func importSentences(ctx context.Context, pgs *store.PostgresStore, path string, lang model.Lang) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open corpus file: %w", err)
	}
	defer f.Close()

	imported := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		sentence := strings.TrimSpace(scanner.Text())
		if sentence == "" {
			continue
		}

		err := pgs.InsertOriginalText(ctx, store.InsertOriginalTextRequest{
			TextID: uuid.NewString(),
			Lang:   lang,
			Text:   sentence,
		})
		if err != nil {
			return imported, fmt.Errorf("insert sentence %q: %w", sentence, err)
		}
		imported++
	}

	if err := scanner.Err(); err != nil {
		return imported, fmt.Errorf("read corpus file: %w", err)
	}

	return imported, nil
}

func printStats(ctx context.Context, pgs *store.PostgresStore, out io.Writer) error {
	stats, err := pgs.Stats(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	fmt.Fprintf(out, "users:              %d\n", stats.Users)
	fmt.Fprintf(out, "original texts:     %d\n", stats.OriginalTexts)
	fmt.Fprintf(out, "translated texts:   %d\n", stats.TranslatedTexts)
	fmt.Fprintf(out, "translations:       %d\n", stats.Translations)
	fmt.Fprintf(out, "voted translations: %d\n", stats.VotedTranslations)
	fmt.Fprintf(out, "votes:              %d\n", stats.Votes)
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("textctl failed", "error", err)
		os.Exit(1)
	}
}
