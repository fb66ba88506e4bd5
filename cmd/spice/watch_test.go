package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/ingest"
	"github.com/Veraticus/spice-inbox/internal/model"
)

func TestDecodeMessages(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		senders []string
		wantErr bool
	}{
		{
			name:    "single pretty object",
			data:    "{\n  \"sender\": \"VM-HDFCBK\",\n  \"body\": \"Rs 10 debited\"\n}\n",
			senders: []string{"VM-HDFCBK"},
		},
		{
			name:    "concatenated objects",
			data:    `{"sender":"A"}{"sender":"B","channel":"push"}`,
			senders: []string{"A", "B"},
		},
		{
			name:    "array",
			data:    `[{"sender":"A"},{"sender":"B"}]`,
			senders: []string{"A", "B"},
		},
		{name: "empty", data: "  \n", wantErr: true},
		{name: "garbage", data: "{sender", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := decodeMessages([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, msgs, len(tt.senders))
			for i, s := range tt.senders {
				assert.Equal(t, s, msgs[i].Sender)
				assert.True(t, msgs[i].Channel.Valid())
			}
		})
	}
}

type recorder struct {
	senders []string
	mu      sync.Mutex
}

func (r *recorder) ingest(_ context.Context, msg model.RawMessage) ingest.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders = append(r.senders, msg.Sender)
	return ingest.Result{Outcome: ingest.OutcomeQueued}
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.senders...)
}

func TestWatchInbox(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001.json"), []byte(`{"sender":"early"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	rec := &recorder{}
	ctx, cancel := context.WithCancel(common.WithLogger(context.Background(), discardLogger()))
	done := make(chan error, 1)
	go func() {
		done <- watchInbox(ctx, dir, rec.ingest)
	}()

	require.Eventually(t, func() bool {
		return len(rec.seen()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	tmp := filepath.Join(dir, "002.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`{"sender":"late"}`), 0o600))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, "002.json")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "003.json.tmp"), []byte("{broken"), 0o600))
	require.NoError(t, os.Rename(filepath.Join(dir, "003.json.tmp"), filepath.Join(dir, "003.json")))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, failedDir, "003.json"))
		return len(rec.seen()) == 2 && err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"early", "late"}, rec.seen())
	assert.FileExists(t, filepath.Join(dir, processedDir, "001.json"))
	assert.FileExists(t, filepath.Join(dir, processedDir, "002.json"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "001.json"))
}
