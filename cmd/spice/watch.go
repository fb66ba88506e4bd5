package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/ingest"
	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/syncer"
)

// Spool subdirectories messages are moved to once handled.
const (
	processedDir = "processed"
	failedDir    = "failed"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the background ingester and sync daemon",
		Long: `Watch the inbox spool directory for *.json message files, ingest each one,
and keep the ledger in sync: the queue is drained on start and again every
time connectivity is restored.

Writers should create files under another name and rename them to *.json
once complete. Handled files move to inbox/processed, unreadable ones to
inbox/failed.`,
		RunE: runWatch,
	}
	cmd.Flags().String("inbox", "", "Spool directory (default: inbox.dir)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (default: metrics.addr)")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	inbox := a.config.InboxDir
	if s, _ := cmd.Flags().GetString("inbox"); s != "" {
		inbox = s
	}
	metricsAddr := a.config.MetricsAddr
	if s, _ := cmd.Flags().GetString("metrics-addr"); s != "" {
		metricsAddr = s
	}

	sub := a.engine.Attach(a.monitor.Bus())
	defer sub.Unsubscribe()

	if a.probe(ctx) == model.ConnectivityOnline {
		if _, err := a.engine.DrainAll(ctx); err != nil && !errors.Is(err, syncer.ErrAlreadySyncing) {
			a.logger.Warn("Initial drain failed", "error", err)
		}
	}
	if n, err := a.queue.Len(ctx); err == nil {
		a.metrics.SetQueueDepth(n)
	}

	a.logger.Info("Watching inbox", "dir", inbox, "metrics", metricsAddr)

	ctx = common.WithLogger(ctx, a.logger)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.monitor.Run(ctx)
	})
	g.Go(func() error {
		return watchInbox(ctx, inbox, a.orch.Ingest)
	})
	if metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, metricsAddr, a.metrics.Handler())
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("Watcher stopped")
	return nil
}

// ingestFunc processes one message.
type ingestFunc func(ctx context.Context, msg model.RawMessage) ingest.Result

// watchInbox handles every *.json file already in dir, then each one that
// appears until ctx is done.
func watchInbox(ctx context.Context, dir string, ingestMsg ingestFunc) error {
	for _, sub := range []string{dir, filepath.Join(dir, processedDir), filepath.Join(dir, failedDir)} {
		if err := os.MkdirAll(sub, 0o750); err != nil {
			return fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// Files that arrived while the daemon was down.
	existing, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return err
	}
	sort.Strings(existing)
	for _, path := range existing {
		handleSpoolFile(ctx, path, ingestMsg)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			handleSpoolFile(ctx, event.Name, ingestMsg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			common.LogError(ctx, err, "Inbox watcher error", common.Fields{"dir": dir})
		}
	}
}

// handleSpoolFile ingests the messages in one spool file and moves it out of
// the inbox. A file that vanished was already handled by an earlier event.
func handleSpoolFile(ctx context.Context, path string, ingestMsg ingestFunc) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		common.LogError(ctx, err, "Failed to read spool file", common.Fields{"path": path})
		return
	}

	msgs, err := decodeMessages(data)
	if err != nil {
		common.LogError(ctx, err, "Unreadable spool file", common.Fields{"path": path})
		moveSpoolFile(ctx, path, failedDir)
		return
	}

	counts := make(map[ingest.Outcome]int)
	for _, msg := range msgs {
		res := ingestMsg(ctx, msg)
		counts[res.Outcome]++
		common.LogDebug(ctx, "Spooled message ingested", common.Fields{"path": path, "outcome": res.Outcome})
	}
	moveSpoolFile(ctx, path, processedDir)
	common.LogInfo(ctx, "Spool file handled", common.Fields{"path": path, "messages": len(msgs), "outcomes": counts})
}

func moveSpoolFile(ctx context.Context, path, sub string) {
	target := filepath.Join(filepath.Dir(path), sub, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(target)
		target = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(target, ext), time.Now().UnixNano(), ext)
	}
	if err := os.Rename(path, target); err != nil && !errors.Is(err, os.ErrNotExist) {
		common.LogError(ctx, err, "Failed to move spool file", common.Fields{"path": path})
	}
}

// decodeMessages reads one or more JSON messages from a spool file. Objects
// may be pretty-printed, concatenated or wrapped in an array.
func decodeMessages(data []byte) ([]model.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty file")
	}

	var msgs []model.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return nil, err
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		for {
			var msg model.RawMessage
			err := dec.Decode(&msg)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
	}

	for i := range msgs {
		if msgs[i].Channel == "" {
			msgs[i].Channel = model.ChannelSMS
		}
	}
	return msgs, nil
}

// serveMetrics serves /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
