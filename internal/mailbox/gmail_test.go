package mailbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// newStubGmailBackend spins up an HTTP stub of the Gmail endpoints the
// label path touches and returns a backend wired against it. Every
// batchModify body is recorded for later inspection.
func newStubGmailBackend(t *testing.T) (*GmailBackend, func() []gmail.BatchModifyMessagesRequest) {
	t.Helper()

	var mu sync.Mutex
	var modifies []gmail.BatchModifyMessagesRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/users/me/labels"):
			json.NewEncoder(w).Encode(&gmail.ListLabelsResponse{
				Labels: []*gmail.Label{
					{Id: "Label_1", Name: "Newsletters"},
					{Id: "Label_2", Name: "Receipts"},
				},
			})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages/batchModify"):
			var req gmail.BatchModifyMessagesRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode batchModify body: %v", err)
			}
			mu.Lock()
			modifies = append(modifies, req)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.Close)

	svc, err := gmail.NewService(context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint(ts.URL+"/"))
	require.NoError(t, err)

	recorded := func() []gmail.BatchModifyMessagesRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]gmail.BatchModifyMessagesRequest(nil), modifies...)
	}
	return NewGmailBackend(svc), recorded
}

func TestGmailBackend_BatchModifyMessageLabels_ResolvesNamesToIDs(t *testing.T) {
	backend, recorded := newStubGmailBackend(t)

	ok, err := backend.BatchModifyMessageLabels(context.Background(),
		[]string{"m1", "m2"}, []string{"Newsletters"}, []string{"Receipts"})
	require.NoError(t, err)
	assert.True(t, ok)

	modifies := recorded()
	require.Len(t, modifies, 1)
	assert.Equal(t, []string{"m1", "m2"}, modifies[0].Ids)
	assert.Equal(t, []string{"Label_1"}, modifies[0].AddLabelIds)
	assert.Equal(t, []string{"Label_2"}, modifies[0].RemoveLabelIds)
}

// Concurrent label modifications share the backend's name-to-ID cache.
// All workers start with a cold cache so refreshes and reads overlap;
// the race detector flags any unsynchronized access.
func TestGmailBackend_BatchModifyMessageLabels_Concurrent(t *testing.T) {
	backend, recorded := newStubGmailBackend(t)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = backend.BatchModifyMessageLabels(context.Background(),
				[]string{"m1"}, []string{"Newsletters"}, []string{"Receipts"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	modifies := recorded()
	require.Len(t, modifies, workers)
	for _, req := range modifies {
		assert.Equal(t, []string{"Label_1"}, req.AddLabelIds)
		assert.Equal(t, []string{"Label_2"}, req.RemoveLabelIds)
	}
}
