package models

import (
	"slices"
	"time"

	"museum_nav/internal/geo"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the credential record together with the navigation profile the
// route and sync engines consult. PasswordHash never leaves the service layer.
type User struct {
	ID                       int64     `json:"id"`
	Username                 string    `json:"username"`
	Email                    string    `json:"email"`
	PasswordHash             string    `json:"-"`
	Role                     string    `json:"role"`
	Preferences              []string  `json:"preferences"`
	PersonalizationAvailable bool      `json:"personalizationAvailable"`
	Favourites               []int64   `json:"favourites"`
	CreatedAt                time.Time `json:"createdAt"`
}

func (u User) EntityID() int64 { return u.ID }

// HasFavourite reports whether exhibitID is in the user's favourites.
func (u User) HasFavourite(exhibitID int64) bool {
	return slices.Contains(u.Favourites, exhibitID)
}

// Principal is the authenticated caller, produced once from a verified token.
type Principal struct {
	UserID   int64
	Username string
	Role     string
}

// Route is a computed walking route owned by a single user.
type Route struct {
	ID             int64       `json:"route_id"`
	UserID         int64       `json:"user_id"`
	DestinationID  int64       `json:"destination_id"`
	Start          geo.Point   `json:"start"`
	End            geo.Point   `json:"end"`
	Path           []geo.Point `json:"path"`
	Instructions   []string    `json:"instructions"`
	Stops          []int64     `json:"stops"`
	Distance       float64     `json:"distance"`
	EstimatedTime  int         `json:"estimatedTime"`
	ArrivalTime    string      `json:"arrivalTime"`
	IsPersonalized bool        `json:"isPersonalized"`
	CreatedAt      time.Time   `json:"createdAt"`
}

func (r Route) EntityID() int64 { return r.ID }

// RouteSummary is the slim projection returned right after calculation.
type RouteSummary struct {
	RouteID         int64  `json:"route_id"`
	UserID          int64  `json:"user_id"`
	DestinationID   int64  `json:"destination_id"`
	CalculationTime string `json:"calculationTime"`
}

const (
	NotificationRouteDeviation    = "route_deviation"
	NotificationArrival           = "arrival"
	NotificationDestinationClosed = "destination_closed"
	NotificationCrowdAlert        = "crowd_alert"
	NotificationInfo              = "info"
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	RouteID   int64     `json:"route_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func (n Notification) EntityID() int64 { return n.ID }

const (
	DestinationOpen   = "open"
	DestinationClosed = "closed"
)

type Destination struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Coordinates geo.Point `json:"coordinates"`
	Status      string    `json:"status"`
}

func (d Destination) EntityID() int64 { return d.ID }

type Exhibit struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Category      []string      `json:"category"`
	Coordinates   geo.Point     `json:"coordinates"`
	Ratings       map[int64]int `json:"-"`
	AverageRating float64       `json:"averageRating"`
	RatingCount   int           `json:"ratingCount"`
}

func (e Exhibit) EntityID() int64 { return e.ID }

const (
	SyncRating         = "rating"
	SyncAddFavorite    = "add_favorite"
	SyncRemoveFavorite = "remove_favorite"
)

// SyncOperation is one client-queued offline action. It is never stored.
type SyncOperation struct {
	OperationType string `json:"operation_type"`
	ExhibitID     int64  `json:"exhibit_id"`
	Rating        *int   `json:"rating,omitempty"`
}

type FailedSyncOperation struct {
	Operation SyncOperation `json:"operation"`
	Reason    string        `json:"reason"`
}

type SyncDetails struct {
	Successful []SyncOperation       `json:"successful"`
	Failed     []FailedSyncOperation `json:"failed"`
}

// SyncResult reports one synchronize call. Conflicts is reserved for
// last-write-wins detection and is always empty.
type SyncResult struct {
	Conflicts  []SyncOperation `json:"conflicts"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Details    SyncDetails     `json:"details"`
}
