package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
)

type seedFile struct {
	Sessions []struct {
		domain.VotingSession
		Eligibility map[string]bool `json:"eligibility"`
	} `json:"sessions"`
}

// LoadSeed reads sessions, options and eligibility records from JSON.
func (s *Store) LoadSeed(r io.Reader) error {
	var seed seedFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return fmt.Errorf("failed to decode seed: %w", err)
	}
	for _, entry := range seed.Sessions {
		if entry.ID == "" {
			return fmt.Errorf("seed session without id")
		}
		s.PutSession(entry.VotingSession)
		for memberID, eligible := range entry.Eligibility {
			s.PutEligibility(domain.VoterEligibility{SessionID: entry.ID, MemberID: memberID, IsEligible: eligible})
		}
	}
	return nil
}

func (s *Store) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return s.LoadSeed(f)
}
