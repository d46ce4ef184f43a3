package contract

import (
	"encoding/json"
	"strconv"
	"strings"

	"commons_treasury/contract/dao"
	"commons_treasury/sdk"
)

// -----------------------------------------------------------------------------
// Payload Fields
// -----------------------------------------------------------------------------

// fields splits a pipe-delimited payload; missing trailing parts read as "".
type fields []string

func splitPayload(raw string) fields {
	raw = unwrapPayload(raw)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "|")
}

func (f fields) get(i int) string {
	if i < len(f) {
		return strings.TrimSpace(f[i])
	}
	return ""
}

// unwrapPayload trims whitespace and one level of quotes added by JSON-ish clients.
func unwrapPayload(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			if unquoted, err := strconv.Unquote(raw); err == nil {
				return strings.TrimSpace(unquoted)
			}
			return strings.TrimSpace(raw[1 : len(raw)-1])
		}
	}
	return raw
}

// parseUintField requires a value; use parseOptionalUint for blanks.
func parseUintField(val, field string) (uint64, error) {
	if val == "" {
		return 0, fail(ErrInvalidPayload, "%s is required", field)
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fail(ErrInvalidPayload, "invalid %s %q", field, val)
	}
	return n, nil
}

func parseOptionalUint(val, field string) (uint64, error) {
	if val == "" {
		return 0, nil
	}
	return parseUintField(val, field)
}

func parseOptionalInt(val, field string) (int64, error) {
	if val == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fail(ErrInvalidPayload, "invalid %s %q", field, val)
	}
	return n, nil
}

func parseAmountField(val, field string) (dao.Amount, error) {
	if val == "" {
		return dao.Amount{}, fail(ErrInvalidPayload, "%s is required", field)
	}
	a, err := dao.ParseAmount(val)
	if err != nil {
		return dao.Amount{}, fail(ErrInvalidPayload, "invalid %s %q: %v", field, val, err)
	}
	return a, nil
}

func parseOptionalAmount(val, field string) (dao.Amount, error) {
	if val == "" {
		return dao.Amount{}, nil
	}
	return parseAmountField(val, field)
}

func parseAddressField(val, field string) (sdk.Address, error) {
	addr := sdk.Address(val)
	if !addr.IsValid() {
		return "", fail(ErrInvalidPayload, "invalid %s %q", field, val)
	}
	return addr.Canonical(), nil
}

// parseBoolField accepts a couple of truthy keywords, defaulting to false for unknown text.
func parseBoolField(val string) bool {
	switch strings.ToLower(val) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// parseList splits a comma list and drops empty entries.
func parseList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Example payload: parseIDList("1,2,3", "project ids")
func parseIDList(val, field string) ([]uint64, error) {
	parts := parseList(val)
	ids := make([]uint64, len(parts))
	for i, p := range parts {
		id, err := parseUintField(p, field)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func parseAmountList(val, field string) ([]dao.Amount, error) {
	parts := parseList(val)
	out := make([]dao.Amount, len(parts))
	for i, p := range parts {
		a, err := parseAmountField(p, field)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

// parseChoices reads "for,abstain,against"; a blank entry counts as not participating.
func parseChoices(val string) ([]dao.Choice, error) {
	parts := strings.Split(val, ",")
	out := make([]dao.Choice, len(parts))
	for i, p := range parts {
		c, ok := dao.ParseChoice(strings.ToLower(strings.TrimSpace(p)))
		if !ok {
			return nil, fail(ErrInvalidPayload, "invalid choice %q", p)
		}
		out[i] = c
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Replies
// -----------------------------------------------------------------------------

// toJSON renders query replies.
func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
