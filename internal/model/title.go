package model

import "time"

// Title is a catalog entry for a book, not a physical item.  Physical
// instances are tracked as Copy rows owned by the title.
//
// Fields:
//  ID            – primary key identifier.
//  Name          – the book's title.
//  Author        – author name.
//  Genre         – genre or category label.
//  Language      – language of the edition.
//  PublishedYear – year of publication.
//  Description   – free-form description, may be empty.
//  Location      – shelf location inside the branch.
//  CreatedAt     – when the title was registered.
type Title struct {
	ID            uint64    // titles.id
	Name          string    // titles.name
	Author        string    // titles.author
	Genre         string    // titles.genre
	Language      string    // titles.language
	PublishedYear int       // titles.published_year
	Description   string    // titles.description
	Location      string    // titles.location
	CreatedAt     time.Time // titles.created_at
}

// TitleSummary is a title enriched with copy counts for catalog listings.
type TitleSummary struct {
	Title
	TotalCopies     int
	AvailableCopies int
}
