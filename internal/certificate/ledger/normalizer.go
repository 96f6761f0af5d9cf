package ledger

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"certvault/internal/certificate/models"
)

// RecordAttributes is the positional order of a ledger record.
var RecordAttributes = []models.Attribute{
	models.AttrUID,
	models.AttrCandidateName,
	models.AttrCourseName,
	models.AttrOrgName,
	models.AttrContentAddress,
	models.AttrCommitTimestamp,
}

// namedKeys lists, per attribute, the keys a named response may use.
// Contract encodings name the address and timestamp after their storage.
var namedKeys = map[models.Attribute][]string{
	models.AttrUID:             {"uid"},
	models.AttrCandidateName:   {"candidateName"},
	models.AttrCourseName:      {"courseName"},
	models.AttrOrgName:         {"orgName"},
	models.AttrContentAddress:  {"contentAddress", "ipfsHash"},
	models.AttrCommitTimestamp: {"commitTimestamp", "timestamp"},
}

// IncompleteRecordError names the attributes absent from a ledger response.
type IncompleteRecordError struct {
	Missing []models.Attribute
}

func (e *IncompleteRecordError) Error() string {
	return "incomplete ledger record: missing " + models.JoinAttributes(e.Missing)
}

// Normalize maps either response shape into a LedgerRecord. Named values
// are looked up by name first, then by their positional index rendered as
// a key. Only absence fails; an empty string is a present value.
func Normalize(id models.CertificateIdentity, raw RawRecord) (models.LedgerRecord, error) {
	values := make(map[models.Attribute]string, len(RecordAttributes))
	var missing []models.Attribute
	for i, attr := range RecordAttributes {
		v, ok := raw.lookup(i, attr)
		if !ok {
			missing = append(missing, attr)
			continue
		}
		values[attr] = v
	}
	if len(missing) > 0 {
		return models.LedgerRecord{}, &IncompleteRecordError{Missing: missing}
	}

	return models.LedgerRecord{
		Identity: id,
		Fields: models.CertificateFields{
			UID:           values[models.AttrUID],
			CandidateName: values[models.AttrCandidateName],
			CourseName:    values[models.AttrCourseName],
			OrgName:       values[models.AttrOrgName],
		},
		ContentAddress:  models.ContentAddress(values[models.AttrContentAddress]),
		CommitTimestamp: values[models.AttrCommitTimestamp],
	}, nil
}

func (r RawRecord) lookup(index int, attr models.Attribute) (string, bool) {
	if r.Named != nil {
		for _, key := range namedKeys[attr] {
			if v, ok := stringify(r.Named[key]); ok {
				return v, true
			}
		}
		return stringify(r.Named[strconv.Itoa(index)])
	}
	if index < len(r.Positional) {
		return stringify(r.Positional[index])
	}
	return "", false
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case *string:
		if t == nil {
			return "", false
		}
		return *t, true
	case []byte:
		return string(t), true
	case fmt.Stringer:
		if isNilPointer(t) {
			return "", false
		}
		return t.String(), true
	default:
		return strings.TrimSpace(fmt.Sprint(t)), true
	}
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
