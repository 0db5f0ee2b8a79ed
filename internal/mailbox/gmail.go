package mailbox

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/warden-mail/warden/internal/tools"
)

// gmailUser is the special value the Gmail API accepts for the
// authenticated user.
const gmailUser = "me"

// GmailBackend implements Backend on top of the Gmail Users service.
type GmailBackend struct {
	svc *gmail.UsersService

	// labelMu guards labelIDs: label resolution can run from
	// concurrent requests.
	labelMu sync.Mutex

	// labelIDs caches the label name to ID mapping; Gmail modify calls
	// take IDs while the tool surface speaks label names.
	labelIDs map[string]string
}

// NewGmailBackend wraps an authenticated Gmail service.
func NewGmailBackend(svc *gmail.Service) *GmailBackend {
	return &GmailBackend{svc: svc.Users}
}

// wrapGmailErr converts a Gmail API failure into a declared domain
// error so the gateway can classify it.
func wrapGmailErr(op string, err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		if apiErr.Code == 400 {
			return NewBackendError(CodeInvalidParameter, "%s rejected by Gmail API: %v", op, apiErr.Message)
		}
		return NewBackendError(CodeGmailAPIError, "%s failed: %v", op, apiErr.Message)
	}
	return NewBackendError(CodeGmailAPIError, "%s failed: %v", op, err)
}

// ListMessages returns one page of message references matching the
// query.
func (b *GmailBackend) ListMessages(ctx context.Context, query string, maxResults int, pageToken string) (*ListResult, error) {
	req := b.svc.Messages.List(gmailUser).MaxResults(int64(maxResults)).Context(ctx)
	if query != "" {
		req = req.Q(query)
	}
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}

	res, err := req.Do()
	if err != nil {
		return nil, wrapGmailErr("list messages", err)
	}

	refs := make([]MessageRef, 0, len(res.Messages))
	for _, m := range res.Messages {
		refs = append(refs, MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}

	return &ListResult{Messages: refs, NextPageToken: res.NextPageToken}, nil
}

// GetMessageDetails retrieves a single message in the given format
// (full, metadata, minimal or raw).
func (b *GmailBackend) GetMessageDetails(ctx context.Context, messageID, format string) (*tools.EmailDetails, error) {
	if messageID == "" {
		return nil, NewBackendError(CodeInvalidParameter, "message ID must not be empty")
	}

	msg, err := b.svc.Messages.Get(gmailUser, messageID).Format(format).Context(ctx).Do()
	if err != nil {
		return nil, wrapGmailErr(fmt.Sprintf("get message %s", messageID), err)
	}

	details := &tools.EmailDetails{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		LabelIDs:     msg.LabelIds,
		Snippet:      msg.Snippet,
		HistoryID:    msg.HistoryId,
		InternalDate: msg.InternalDate,
		SizeEstimate: msg.SizeEstimate,
		Raw:          msg.Raw,
	}
	if msg.Payload != nil {
		details.Payload = msg.Payload
	}
	return details, nil
}

// GetMessageMetadata fetches the flattened header and label view of a
// message that rule conditions are evaluated against.
func (b *GmailBackend) GetMessageMetadata(ctx context.Context, messageID string) (*MessageMeta, error) {
	msg, err := b.svc.Messages.Get(gmailUser, messageID).
		Format("metadata").
		MetadataHeaders("From", "To", "Subject").
		Context(ctx).Do()
	if err != nil {
		return nil, wrapGmailErr(fmt.Sprintf("get message %s", messageID), err)
	}

	meta := &MessageMeta{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		LabelIDs: msg.LabelIds,
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				meta.From = h.Value
			case "to":
				meta.To = h.Value
			case "subject":
				meta.Subject = h.Value
			}
		}
	}
	return meta, nil
}

// BatchTrashMessages moves each message to trash. The boolean result
// mirrors the backend's own success signal.
func (b *GmailBackend) BatchTrashMessages(ctx context.Context, messageIDs []string) (bool, error) {
	for _, id := range messageIDs {
		if _, err := b.svc.Messages.Trash(gmailUser, id).Context(ctx).Do(); err != nil {
			return false, wrapGmailErr(fmt.Sprintf("trash message %s", id), err)
		}
	}
	return true, nil
}

// BatchModifyMessageLabels adds and removes labels by name on the
// given messages. Label names to add are created when missing; names
// to remove that do not exist are skipped.
func (b *GmailBackend) BatchModifyMessageLabels(ctx context.Context, messageIDs, addLabelNames, removeLabelNames []string) (bool, error) {
	addIDs, err := b.resolveLabelIDs(ctx, addLabelNames, true)
	if err != nil {
		return false, err
	}
	removeIDs, err := b.resolveLabelIDs(ctx, removeLabelNames, false)
	if err != nil {
		return false, err
	}

	req := &gmail.BatchModifyMessagesRequest{
		Ids:            messageIDs,
		AddLabelIds:    addIDs,
		RemoveLabelIds: removeIDs,
	}
	if err := b.svc.Messages.BatchModify(gmailUser, req).Context(ctx).Do(); err != nil {
		return false, wrapGmailErr("batch modify labels", err)
	}
	return true, nil
}

// BatchMarkMessages marks messages read or unread by toggling the
// UNREAD system label.
func (b *GmailBackend) BatchMarkMessages(ctx context.Context, messageIDs []string, markAs string) (bool, error) {
	req := &gmail.BatchModifyMessagesRequest{Ids: messageIDs}
	switch markAs {
	case "read":
		req.RemoveLabelIds = []string{"UNREAD"}
	case "unread":
		req.AddLabelIds = []string{"UNREAD"}
	default:
		return false, NewBackendError(CodeInvalidParameter, "invalid mark_as value: %s", markAs)
	}

	if err := b.svc.Messages.BatchModify(gmailUser, req).Context(ctx).Do(); err != nil {
		return false, wrapGmailErr("batch mark messages", err)
	}
	return true, nil
}

// BatchDeletePermanently deletes messages outright, bypassing trash.
func (b *GmailBackend) BatchDeletePermanently(ctx context.Context, messageIDs []string) (bool, error) {
	req := &gmail.BatchDeleteMessagesRequest{Ids: messageIDs}
	if err := b.svc.Messages.BatchDelete(gmailUser, req).Context(ctx).Do(); err != nil {
		return false, wrapGmailErr("batch delete messages", err)
	}
	return true, nil
}

// resolveLabelIDs maps label names to IDs, refreshing the cache once
// on a miss. System labels (all-caps names like INBOX or UNREAD) pass
// through unchanged.
func (b *GmailBackend) resolveLabelIDs(ctx context.Context, names []string, createMissing bool) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	b.labelMu.Lock()
	defer b.labelMu.Unlock()

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if name == strings.ToUpper(name) {
			ids = append(ids, name)
			continue
		}

		id, err := b.lookupLabelID(ctx, name)
		if err != nil {
			return nil, err
		}
		if id == "" {
			if !createMissing {
				continue
			}
			created, err := b.svc.Labels.Create(gmailUser, &gmail.Label{Name: name}).Context(ctx).Do()
			if err != nil {
				return nil, wrapGmailErr(fmt.Sprintf("create label %q", name), err)
			}
			b.labelIDs[name] = created.Id
			id = created.Id
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// lookupLabelID reads the cache, populating it on first use. The
// caller must hold labelMu.
func (b *GmailBackend) lookupLabelID(ctx context.Context, name string) (string, error) {
	if b.labelIDs == nil {
		if err := b.refreshLabelCache(ctx); err != nil {
			return "", err
		}
	}
	if id, ok := b.labelIDs[name]; ok {
		return id, nil
	}

	// Miss may mean a stale cache; refresh once before giving up.
	if err := b.refreshLabelCache(ctx); err != nil {
		return "", err
	}
	return b.labelIDs[name], nil
}

// refreshLabelCache rebuilds the cache from the Labels list call. The
// caller must hold labelMu.
func (b *GmailBackend) refreshLabelCache(ctx context.Context) error {
	res, err := b.svc.Labels.List(gmailUser).Context(ctx).Do()
	if err != nil {
		return wrapGmailErr("list labels", err)
	}
	b.labelIDs = make(map[string]string, len(res.Labels))
	for _, label := range res.Labels {
		b.labelIDs[label.Name] = label.Id
	}
	return nil
}
