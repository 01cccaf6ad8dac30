package storage

import (
	"museum_nav/internal/geo"
	"museum_nav/internal/models"
)

// Demo data for mock mode. The same rows are inserted by the
// 00002_seed.sql migration.

func seedDestinations() []models.Destination {
	return []models.Destination{
		{ID: 1, Name: "Great Hall", Coordinates: geo.Point{Lat: 40.7794, Lng: -73.9632}, Status: models.DestinationOpen},
		{ID: 2, Name: "Egyptian Wing", Coordinates: geo.Point{Lat: 40.7802, Lng: -73.9620}, Status: models.DestinationOpen},
		{ID: 3, Name: "European Paintings", Coordinates: geo.Point{Lat: 40.7791, Lng: -73.9640}, Status: models.DestinationOpen},
		{ID: 4, Name: "Roof Garden", Coordinates: geo.Point{Lat: 40.7797, Lng: -73.9636}, Status: models.DestinationClosed},
		{ID: 5, Name: "Museum Cafe", Coordinates: geo.Point{Lat: 40.7788, Lng: -73.9628}, Status: models.DestinationOpen},
	}
}

func seedExhibits() []models.Exhibit {
	return []models.Exhibit{
		{ID: 1, Name: "Temple of Dendur", Category: []string{"Ancient", "Egyptian", "Architecture"}, Coordinates: geo.Point{Lat: 40.7803, Lng: -73.9618}},
		{ID: 2, Name: "Mastaba Tomb of Perneb", Category: []string{"Ancient", "Egyptian"}, Coordinates: geo.Point{Lat: 40.7800, Lng: -73.9625}},
		{ID: 3, Name: "Washington Crossing the Delaware", Category: []string{"Painting", "American", "History"}, Coordinates: geo.Point{Lat: 40.7796, Lng: -73.9645}},
		{ID: 4, Name: "Wheat Field with Cypresses", Category: []string{"Painting", "Impressionism"}, Coordinates: geo.Point{Lat: 40.7790, Lng: -73.9641}},
		{ID: 5, Name: "Armor of Henry II", Category: []string{"Arms", "Renaissance"}, Coordinates: geo.Point{Lat: 40.7793, Lng: -73.9629}},
		{ID: 6, Name: "Astor Chinese Garden Court", Category: []string{"Asian", "Architecture", "Garden"}, Coordinates: geo.Point{Lat: 40.7798, Lng: -73.9633}},
		{ID: 7, Name: "Madame X", Category: []string{"Painting", "Portrait", "American"}, Coordinates: geo.Point{Lat: 40.7795, Lng: -73.9643}},
		{ID: 8, Name: "Perseus with the Head of Medusa", Category: []string{"Sculpture", "Neoclassical"}, Coordinates: geo.Point{Lat: 40.7792, Lng: -73.9635}},
	}
}
