package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// Kind markers prefixed to the hashed bytes so text and a list never share
// a fingerprint, even when the text is the list's canonical encoding.
const (
	textKind = "t\x00"
	listKind = "l\x00"
)

// Fingerprint derives the content key of a submission.
//
// Text is hashed as its raw bytes. A message list is hashed as its
// canonical JSON encoding: object keys sorted, no insignificant
// whitespace, numbers as submitted. Two lists that differ only in key
// order or formatting therefore share a fingerprint. Either form is
// prefixed with a kind marker before hashing.
func Fingerprint(content domain.Content) (domain.Fingerprint, error) {
	data, err := canonicalBytes(content)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return domain.Fingerprint(hex.EncodeToString(sum[:])), nil
}

func canonicalBytes(content domain.Content) ([]byte, error) {
	if !content.IsList {
		return append([]byte(textKind), content.Text...), nil
	}

	msgs := content.Messages
	if msgs == nil {
		msgs = []map[string]any{}
	}
	// encoding/json writes map keys in sorted order.
	data, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: message list is not JSON encodable: %v", domain.ErrInvalidInput, err)
	}
	return append([]byte(listKind), data...), nil
}
