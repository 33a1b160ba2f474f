package store

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ParseMembershipCSV reads a membership import file of
// "organization_external_id,user_external_id" rows and groups the user ids
// per organization. A header row is skipped when present.
func ParseMembershipCSV(reader io.Reader) (map[string][]string, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true

	memberships := map[string][]string{}
	seen := map[string]bool{}
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse membership csv")
		}

		orgExternalID := strings.TrimSpace(record[0])
		userExternalID := strings.TrimSpace(record[1])

		if first {
			first = false
			if strings.EqualFold(orgExternalID, "organization_external_id") {
				continue
			}
		}
		if orgExternalID == "" || userExternalID == "" {
			continue
		}

		key := orgExternalID + "\x00" + userExternalID
		if seen[key] {
			continue
		}
		seen[key] = true
		memberships[orgExternalID] = append(memberships[orgExternalID], userExternalID)
	}

	if len(memberships) == 0 {
		return nil, errors.New("membership csv has no rows")
	}
	return memberships, nil
}
