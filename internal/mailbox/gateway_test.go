package mailbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-mail/warden/internal/tools"
)

// fakeBackend scripts every backend call. Zero values succeed.
type fakeBackend struct {
	listResult  *ListResult
	listErr     error
	details     *tools.EmailDetails
	detailsErr  error
	batchOK     bool
	batchErr    error
	lastAdded   []string
	lastRemoved []string
	lastMarkAs  string
}

func (b *fakeBackend) ListMessages(ctx context.Context, query string, maxResults int, pageToken string) (*ListResult, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	if b.listResult != nil {
		return b.listResult, nil
	}
	return &ListResult{}, nil
}

func (b *fakeBackend) GetMessageDetails(ctx context.Context, messageID, format string) (*tools.EmailDetails, error) {
	if b.detailsErr != nil {
		return nil, b.detailsErr
	}
	if b.details != nil {
		return b.details, nil
	}
	return &tools.EmailDetails{ID: messageID}, nil
}

func (b *fakeBackend) GetMessageMetadata(ctx context.Context, messageID string) (*MessageMeta, error) {
	return &MessageMeta{ID: messageID}, nil
}

func (b *fakeBackend) BatchTrashMessages(ctx context.Context, messageIDs []string) (bool, error) {
	return b.batchOK, b.batchErr
}

func (b *fakeBackend) BatchModifyMessageLabels(ctx context.Context, messageIDs, addLabelNames, removeLabelNames []string) (bool, error) {
	b.lastAdded = addLabelNames
	b.lastRemoved = removeLabelNames
	return b.batchOK, b.batchErr
}

func (b *fakeBackend) BatchMarkMessages(ctx context.Context, messageIDs []string, markAs string) (bool, error) {
	b.lastMarkAs = markAs
	return b.batchOK, b.batchErr
}

func (b *fakeBackend) BatchDeletePermanently(ctx context.Context, messageIDs []string) (bool, error) {
	return b.batchOK, b.batchErr
}

// fakeRuleService scripts the rule collaborator.
type fakeRuleService struct {
	rules     []map[string]any
	loadErr   error
	added     map[string]any
	addErr    error
	deleteOK  bool
	deleteErr error
	applyOut  *tools.ApplyRulesOutput
	applyErr  error
}

func (s *fakeRuleService) LoadRules(ctx context.Context) ([]map[string]any, error) {
	return s.rules, s.loadErr
}

func (s *fakeRuleService) AddRule(ctx context.Context, definition map[string]any) (map[string]any, error) {
	return s.added, s.addErr
}

func (s *fakeRuleService) DeleteRule(ctx context.Context, identifier string) (bool, error) {
	return s.deleteOK, s.deleteErr
}

func (s *fakeRuleService) ApplyRules(ctx context.Context, backend Backend, opts ApplyOptions) (*tools.ApplyRulesOutput, error) {
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	if s.applyOut != nil {
		return s.applyOut, nil
	}
	return &tools.ApplyRulesOutput{DryRun: opts.DryRun}, nil
}

func newTestGateway(backend Backend, ruleSvc RuleService) *Gateway {
	factory := func(ctx context.Context) (Backend, error) { return backend, nil }
	return NewGateway(factory, ruleSvc, nil, nil)
}

func TestGateway_ListEmails(t *testing.T) {
	backend := &fakeBackend{listResult: &ListResult{
		Messages:      []MessageRef{{ID: "m1", ThreadID: "t1"}, {ID: "m2", ThreadID: "t2"}},
		NextPageToken: "next",
	}}
	g := newTestGateway(backend, &fakeRuleService{})

	result := g.ListEmails(context.Background(), &tools.ListEmailsParams{Query: "is:unread"})

	require.True(t, result.Success)
	out, ok := result.Data.(tools.ListEmailsOutput)
	require.True(t, ok)
	assert.Len(t, out.EmailSummaries, 2)
	assert.Equal(t, "next", out.NextPageToken)
}

func TestGateway_FactoryErrorIsBackendError(t *testing.T) {
	factory := func(ctx context.Context) (Backend, error) {
		return nil, errors.New("token file missing")
	}
	g := NewGateway(factory, &fakeRuleService{}, nil, nil)

	result := g.ListEmails(context.Background(), &tools.ListEmailsParams{})

	require.False(t, result.Success)
	assert.Equal(t, CodeBackendError, result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "token file missing")
}

func TestGateway_NilFactoryResult(t *testing.T) {
	factory := func(ctx context.Context) (Backend, error) { return nil, nil }
	g := NewGateway(factory, &fakeRuleService{}, nil, nil)

	result := g.ListEmails(context.Background(), &tools.ListEmailsParams{})

	require.False(t, result.Success)
	assert.Equal(t, CodeBackendError, result.ErrorCode)
}

func TestGateway_SingleInitialization(t *testing.T) {
	var calls atomic.Int32
	backend := &fakeBackend{batchOK: true}
	factory := func(ctx context.Context) (Backend, error) {
		calls.Add(1)
		return backend, nil
	}
	g := NewGateway(factory, &fakeRuleService{}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.ListEmails(context.Background(), &tools.ListEmailsParams{})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestGateway_TrashEmails(t *testing.T) {
	t.Run("empty ids short-circuit", func(t *testing.T) {
		factory := func(ctx context.Context) (Backend, error) {
			t.Fatal("backend must not be initialized")
			return nil, nil
		}
		g := NewGateway(factory, &fakeRuleService{}, nil, nil)

		result := g.TrashEmails(context.Background(), &tools.TrashEmailsParams{MessageIDs: []string{}})

		require.False(t, result.Success)
		assert.Equal(t, CodeInvalidParameter, result.ErrorCode)
		out, ok := result.Data.(tools.TrashEmailsOutput)
		require.True(t, ok)
		assert.Zero(t, out.TrashedCount)
	})

	t.Run("success", func(t *testing.T) {
		g := newTestGateway(&fakeBackend{batchOK: true}, &fakeRuleService{})

		result := g.TrashEmails(context.Background(), &tools.TrashEmailsParams{MessageIDs: []string{"a", "b"}})

		require.True(t, result.Success)
		out := result.Data.(tools.TrashEmailsOutput)
		assert.Equal(t, 2, out.TrashedCount)
		assert.Contains(t, out.StatusMessage, "2 email(s)")
	})

	t.Run("reported failure without error", func(t *testing.T) {
		g := newTestGateway(&fakeBackend{batchOK: false}, &fakeRuleService{})

		result := g.TrashEmails(context.Background(), &tools.TrashEmailsParams{MessageIDs: []string{"a"}})

		require.False(t, result.Success)
		assert.Equal(t, CodeOperationFailed, result.ErrorCode)
		assert.Contains(t, result.ErrorMessage, "reported failure without an error")
	})

	t.Run("backend error keeps zero-count data", func(t *testing.T) {
		backend := &fakeBackend{batchErr: NewBackendError(CodeGmailAPIError, "quota exceeded")}
		g := newTestGateway(backend, &fakeRuleService{})

		result := g.TrashEmails(context.Background(), &tools.TrashEmailsParams{MessageIDs: []string{"a"}})

		require.False(t, result.Success)
		assert.Equal(t, CodeGmailAPIError, result.ErrorCode)
		out := result.Data.(tools.TrashEmailsOutput)
		assert.Zero(t, out.TrashedCount)
		assert.Equal(t, result.ErrorMessage, out.StatusMessage)
	})
}

func TestGateway_LabelEmails(t *testing.T) {
	t.Run("no labels rejected", func(t *testing.T) {
		g := newTestGateway(&fakeBackend{batchOK: true}, &fakeRuleService{})

		result := g.LabelEmails(context.Background(), &tools.LabelEmailsParams{MessageIDs: []string{"a"}})

		require.False(t, result.Success)
		assert.Equal(t, CodeInvalidParameter, result.ErrorCode)
	})

	t.Run("success", func(t *testing.T) {
		backend := &fakeBackend{batchOK: true}
		g := newTestGateway(backend, &fakeRuleService{})

		result := g.LabelEmails(context.Background(), &tools.LabelEmailsParams{
			MessageIDs:    []string{"a", "b", "c"},
			AddLabelNames: []string{"Receipts"},
		})

		require.True(t, result.Success)
		out := result.Data.(tools.LabelEmailsOutput)
		assert.Equal(t, 3, out.ModifiedCount)
		assert.Equal(t, []string{"Receipts"}, backend.lastAdded)
	})
}

func TestGateway_MarkEmails(t *testing.T) {
	t.Run("normalizes case", func(t *testing.T) {
		backend := &fakeBackend{batchOK: true}
		g := newTestGateway(backend, &fakeRuleService{})

		result := g.MarkEmails(context.Background(), &tools.MarkEmailsParams{
			MessageIDs: []string{"a"},
			MarkAs:     "READ",
		})

		require.True(t, result.Success)
		assert.Equal(t, "read", backend.lastMarkAs)
	})

	t.Run("invalid state rejected", func(t *testing.T) {
		g := newTestGateway(&fakeBackend{batchOK: true}, &fakeRuleService{})

		result := g.MarkEmails(context.Background(), &tools.MarkEmailsParams{
			MessageIDs: []string{"a"},
			MarkAs:     "starred",
		})

		require.False(t, result.Success)
		assert.Equal(t, CodeInvalidParameter, result.ErrorCode)
	})
}

func TestGateway_ApplyRules_QueryComposition(t *testing.T) {
	var captured ApplyOptions
	svc := &capturingRuleService{}
	g := newTestGateway(&fakeBackend{}, svc)

	result := g.ApplyRules(context.Background(), &tools.ApplyRulesParams{
		GmailQueryFilter: "in:inbox",
		DateAfter:        "2026/01/01",
		DateBefore:       "2026/02/01",
	})
	require.True(t, result.Success)
	captured = svc.lastOpts
	assert.Equal(t, "in:inbox after:2026-01-01 before:2026-02-01", captured.QueryFilter)

	result = g.ApplyRules(context.Background(), &tools.ApplyRulesParams{
		GmailQueryFilter: "in:inbox",
		AllMail:          true,
	})
	require.True(t, result.Success)
	assert.Empty(t, svc.lastOpts.QueryFilter)
}

type capturingRuleService struct {
	fakeRuleService
	lastOpts ApplyOptions
}

func (s *capturingRuleService) ApplyRules(ctx context.Context, backend Backend, opts ApplyOptions) (*tools.ApplyRulesOutput, error) {
	s.lastOpts = opts
	return &tools.ApplyRulesOutput{DryRun: opts.DryRun}, nil
}

func TestGateway_ListRules_NilBecomesEmpty(t *testing.T) {
	g := newTestGateway(&fakeBackend{}, &fakeRuleService{rules: nil})

	result := g.ListRules(context.Background())

	require.True(t, result.Success)
	out := result.Data.(tools.ListRulesOutput)
	require.NotNil(t, out.Rules)
	assert.Empty(t, out.Rules)
}

func TestGateway_DeleteRule(t *testing.T) {
	t.Run("not found is remapped", func(t *testing.T) {
		svc := &fakeRuleService{deleteErr: NewBackendError(CodeRuleNotFound, "rule %q not found", "ghost")}
		g := newTestGateway(&fakeBackend{}, svc)

		result := g.DeleteRule(context.Background(), &tools.DeleteRuleParams{RuleIdentifier: "ghost"})

		require.False(t, result.Success)
		assert.Equal(t, CodeRuleNotFound, result.ErrorCode)
		assert.Equal(t, "Rule 'ghost' not found.", result.ErrorMessage)
	})

	t.Run("success", func(t *testing.T) {
		svc := &fakeRuleService{deleteOK: true}
		g := newTestGateway(&fakeBackend{}, svc)

		result := g.DeleteRule(context.Background(), &tools.DeleteRuleParams{RuleIdentifier: "promos"})

		require.True(t, result.Success)
		out := result.Data.(tools.DeleteRuleOutput)
		assert.Equal(t, "promos", out.DeletedRuleIdentifier)
		assert.Contains(t, out.StatusMessage, "Successfully deleted rule: promos")
	})

	t.Run("storage error passes through", func(t *testing.T) {
		svc := &fakeRuleService{deleteErr: NewBackendError(CodeRuleStorageError, "disk full")}
		g := newTestGateway(&fakeBackend{}, svc)

		result := g.DeleteRule(context.Background(), &tools.DeleteRuleParams{RuleIdentifier: "promos"})

		require.False(t, result.Success)
		assert.Equal(t, CodeRuleStorageError, result.ErrorCode)
	})
}

func TestGateway_AddRule_ErrorClassification(t *testing.T) {
	svc := &fakeRuleService{addErr: NewBackendError(CodeInvalidRuleDefinition, "invalid rule definition: missing name")}
	g := newTestGateway(&fakeBackend{}, svc)

	result := g.AddRule(context.Background(), &tools.AddRuleParams{RuleDefinition: map[string]any{}})

	require.False(t, result.Success)
	assert.Equal(t, CodeInvalidRuleDefinition, result.ErrorCode)
}

func TestGateway_PanicIsCaptured(t *testing.T) {
	svc := &panickingRuleService{}
	g := newTestGateway(&fakeBackend{}, svc)

	result := g.ListRules(context.Background())

	require.False(t, result.Success)
	assert.Equal(t, CodeUnexpected, result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "Unexpected error")
}

type panickingRuleService struct {
	fakeRuleService
}

func (s *panickingRuleService) LoadRules(ctx context.Context) ([]map[string]any, error) {
	panic("storage corrupted")
}

func TestGateway_UnexpectedErrorClassification(t *testing.T) {
	backend := &fakeBackend{listErr: errors.New("connection reset")}
	g := newTestGateway(backend, &fakeRuleService{})

	result := g.ListEmails(context.Background(), &tools.ListEmailsParams{})

	require.False(t, result.Success)
	assert.Equal(t, CodeUnexpected, result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "Unexpected error: connection reset")
}
