package groups

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrDefaultGroupLocked is returned when renaming or deleting the default group.
var ErrDefaultGroupLocked = fmt.Errorf("the default group cannot be modified or deleted")

// ErrNotFound is returned when a group does not exist for the user.
var ErrNotFound = fmt.Errorf("group not found")

// Service applies the business rules around holding groups.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new group service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "groups").Logger(),
	}
}

// EnsureDefault makes sure the user has the reserved default group and
// returns it. Safe to call repeatedly.
func (s *Service) EnsureDefault(userID string) (*Group, error) {
	existing, err := s.repo.GetByName(userID, DefaultGroupName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	created, err := s.repo.Create(userID, DefaultGroupName, "Holdings without an assigned group")
	if err == ErrNameTaken {
		// Another request created it concurrently
		return s.repo.GetByName(userID, DefaultGroupName)
	}
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("user_id", userID).Msg("Created default group")
	return created, nil
}

// Create adds a new group for the user.
func (s *Service) Create(userID, name, description string) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("group name is required")
	}
	if strings.EqualFold(name, DefaultGroupName) {
		return nil, ErrNameTaken
	}
	return s.repo.Create(userID, name, strings.TrimSpace(description))
}

// List returns the user's groups, guaranteeing the default group exists.
func (s *Service) List(userID string) ([]Group, error) {
	if _, err := s.EnsureDefault(userID); err != nil {
		return nil, err
	}
	return s.repo.ListByUser(userID)
}

// Get returns a single group owned by the user.
func (s *Service) Get(id int64, userID string) (*Group, error) {
	group, err := s.repo.GetByID(id, userID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrNotFound
	}
	return group, nil
}

// Update renames a group. The default group is immutable.
func (s *Service) Update(id int64, userID, name, description string) (*Group, error) {
	group, err := s.Get(id, userID)
	if err != nil {
		return nil, err
	}
	if group.IsDefault {
		return nil, ErrDefaultGroupLocked
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("group name is required")
	}
	if strings.EqualFold(name, DefaultGroupName) {
		return nil, ErrNameTaken
	}

	if err := s.repo.Update(id, userID, name, strings.TrimSpace(description)); err != nil {
		return nil, err
	}
	return s.repo.GetByID(id, userID)
}

// Delete removes a group, reassigning its holdings to the default group.
func (s *Service) Delete(id int64, userID string) error {
	group, err := s.Get(id, userID)
	if err != nil {
		return err
	}
	if group.IsDefault {
		return ErrDefaultGroupLocked
	}

	def, err := s.EnsureDefault(userID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteAndReassign(id, userID, def.ID); err != nil {
		return err
	}

	s.log.Info().
		Int64("group_id", id).
		Str("user_id", userID).
		Msg("Deleted group, holdings moved to default")
	return nil
}
