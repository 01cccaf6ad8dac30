package service

import (
	"context"
	"fmt"

	"museum_nav/internal/errs"
	"museum_nav/internal/models"
	"museum_nav/internal/storage"
)

type ExhibitView struct {
	models.Exhibit
	Favourite bool `json:"favourite"`
}

type ExhibitService struct {
	exhibits storage.ExhibitRepository
	users    storage.UserRepository
}

func NewExhibitService(exhibits storage.ExhibitRepository, users storage.UserRepository) *ExhibitService {
	return &ExhibitService{
		exhibits: exhibits,
		users:    users,
	}
}

// List returns every exhibit. For a signed-in viewer the viewer's favourites
// are flagged; a nil viewer gets the anonymous listing.
func (s *ExhibitService) List(ctx context.Context, viewer *models.Principal) ([]ExhibitView, error) {
	const op = "service.ExhibitService.List"

	all, err := s.exhibits.ListAll(ctx)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}

	var user models.User
	if viewer != nil {
		// a viewer whose account vanished is served like an anonymous one
		if u, err := s.users.FindByID(ctx, viewer.UserID); err == nil {
			user = u
		}
	}

	views := make([]ExhibitView, 0, len(all))
	for _, e := range all {
		views = append(views, ExhibitView{
			Exhibit:   e,
			Favourite: user.HasFavourite(e.ID),
		})
	}
	return views, nil
}
