package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// Field names accepted for each canonical message attribute, in priority order.
var (
	bodyKeys      = []string{"content", "body", "text"}
	timestampKeys = []string{"timestamp", "created_at", "time"}
	editedKeys    = []string{"edited_timestamp", "edited_at"}
	nameKeys      = []string{"username", "name", "global_name", "nick"}
)

// Unix timestamps above this are taken to be in milliseconds.
const unixMillisThreshold = 1e12

// Normaliser is the structural normalisation stage.
type Normaliser struct{}

// NewNormaliser creates a normalisation stage.
func NewNormaliser() *Normaliser {
	return &Normaliser{}
}

// Normalise coerces extracted records into canonical messages ordered by
// ordinal. Missing optional fields default to empty values. A record with
// no author or no ordinal is a schema violation.
func (n *Normaliser) Normalise(ctx context.Context, ext domain.Extraction) ([]domain.Message, error) {
	msgs := make([]domain.Message, 0, len(ext.Messages))

	for i, em := range ext.Messages {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		msg, err := normaliseMessage(em)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Ordinal < msgs[j].Ordinal
	})
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Ordinal == msgs[i-1].Ordinal {
			return nil, fmt.Errorf("%w: duplicate ordinal %d", domain.ErrSchemaViolation, msgs[i].Ordinal)
		}
	}

	return msgs, nil
}

func normaliseMessage(em domain.ExtractedMessage) (domain.Message, error) {
	if !em.HasOrdinal {
		return domain.Message{}, fmt.Errorf("%w: missing ordinal", domain.ErrSchemaViolation)
	}

	f := em.Fields
	author, err := coerceAuthor(f)
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		Ordinal:     em.Ordinal,
		Author:      author,
		Attachments: []domain.Attachment{},
		Reactions:   []domain.Reaction{},
		Embeds:      []map[string]any{},
	}

	if v, ok := f["id"]; ok {
		if msg.ID, err = coerceScalar("id", v); err != nil {
			return domain.Message{}, err
		}
	}
	if v, ok := first(f, bodyKeys); ok {
		if msg.Body, err = coerceScalar("content", v); err != nil {
			return domain.Message{}, err
		}
	}
	if v, ok := first(f, timestampKeys); ok {
		if msg.Timestamp, err = coerceTime("timestamp", v); err != nil {
			return domain.Message{}, err
		}
	}
	if v, ok := first(f, editedKeys); ok {
		if msg.EditedAt, err = coerceTime("edited_timestamp", v); err != nil {
			return domain.Message{}, err
		}
	}
	if v, ok := f["attachments"]; ok && v != nil {
		if msg.Attachments, err = coerceAttachments(v); err != nil {
			return domain.Message{}, err
		}
	}
	if v, ok := f["reactions"]; ok && v != nil {
		if msg.Reactions, err = coerceReactions(v); err != nil {
			return domain.Message{}, err
		}
	}
	if v, ok := f["embeds"]; ok && v != nil {
		if msg.Embeds, err = objectList("embeds", v); err != nil {
			return domain.Message{}, err
		}
	}

	return msg, nil
}

// coerceAuthor accepts a bare name, an author object, or flat
// author_id/author_name fields.
func coerceAuthor(f map[string]any) (domain.Author, error) {
	var a domain.Author

	switch v := f["author"].(type) {
	case string:
		a.ID, a.Name = v, v
	case map[string]any:
		if id, ok := v["id"]; ok {
			s, err := coerceScalar("author.id", id)
			if err != nil {
				return a, err
			}
			a.ID = s
		}
		if name, ok := first(v, nameKeys); ok {
			s, err := coerceScalar("author.name", name)
			if err != nil {
				return a, err
			}
			a.Name = s
		}
		if d, ok := v["discriminator"]; ok {
			a.Discriminator, _ = coerceScalar("author.discriminator", d)
		}
		if av, ok := v["avatar"].(string); ok {
			a.Avatar = av
		}
		if bot, ok := v["bot"].(bool); ok {
			a.Bot = bot
		}
	case nil:
		if id, ok := f["author_id"]; ok {
			a.ID, _ = coerceScalar("author_id", id)
		}
		if name, ok := f["author_name"]; ok {
			a.Name, _ = coerceScalar("author_name", name)
		}
	default:
		return a, fmt.Errorf("%w: author has unexpected type %T", domain.ErrSchemaViolation, v)
	}

	if a.ID == "" && a.Name == "" {
		return a, fmt.Errorf("%w: missing author", domain.ErrSchemaViolation)
	}
	if a.ID == "" {
		a.ID = a.Name
	}
	if a.Name == "" {
		a.Name = a.ID
	}
	return a, nil
}

func coerceAttachments(v any) ([]domain.Attachment, error) {
	items, err := objectList("attachments", v)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Attachment, 0, len(items))
	for _, item := range items {
		var att domain.Attachment
		if id, ok := item["id"]; ok {
			att.ID, _ = coerceScalar("attachments.id", id)
		}
		att.Filename, _ = item["filename"].(string)
		att.URL, _ = item["url"].(string)
		if size, ok := item["size"]; ok {
			n, err := coerceInt("attachments.size", size)
			if err != nil {
				return nil, err
			}
			att.Size = n
		}
		out = append(out, att)
	}
	return out, nil
}

func coerceReactions(v any) ([]domain.Reaction, error) {
	items, err := objectList("reactions", v)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Reaction, 0, len(items))
	for _, item := range items {
		var r domain.Reaction
		switch e := item["emoji"].(type) {
		case string:
			r.Emoji = e
		case map[string]any:
			r.Emoji, _ = e["name"].(string)
		}
		if c, ok := item["count"]; ok {
			n, err := coerceInt("reactions.count", c)
			if err != nil {
				return nil, err
			}
			r.Count = int(n)
		}
		out = append(out, r)
	}
	return out, nil
}

func objectList(field string, v any) ([]map[string]any, error) {
	list, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]map[string]any); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("%w: %s must be a list", domain.ErrSchemaViolation, field)
	}

	out := make([]map[string]any, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] must be an object", domain.ErrSchemaViolation, field, i)
		}
		out = append(out, obj)
	}
	return out, nil
}

func coerceScalar(field string, v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(s), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case bool:
		return strconv.FormatBool(s), nil
	default:
		return "", fmt.Errorf("%w: %s has unexpected type %T", domain.ErrSchemaViolation, field, v)
	}
}

func coerceInt(field string, v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not a number", domain.ErrSchemaViolation, field)
		}
		return int64(f), nil
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not a number", domain.ErrSchemaViolation, field)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: %s has unexpected type %T", domain.ErrSchemaViolation, field, v)
	}
}

// coerceTime accepts RFC 3339 strings and unix seconds or milliseconds.
func coerceTime(field string, v any) (*time.Time, error) {
	var t time.Time

	switch ts := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(ts) == "" {
			return nil, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q is not RFC 3339", domain.ErrSchemaViolation, field, ts)
		}
		t = parsed
	case json.Number, float64, int, int64:
		f, err := toFloat(ts)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not a number", domain.ErrSchemaViolation, field)
		}
		t = fromUnix(f)
	default:
		return nil, fmt.Errorf("%w: %s has unexpected type %T", domain.ErrSchemaViolation, field, v)
	}

	t = t.UTC()
	return &t, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func fromUnix(f float64) time.Time {
	if math.Abs(f) >= unixMillisThreshold {
		return time.UnixMilli(int64(f))
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}

func first(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
