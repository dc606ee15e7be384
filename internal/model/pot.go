package model

import (
	"time"

	"github.com/subdivision/pot-server/internal/apperror"
)

// PotStatus is the recruiting state of a pot. There are exactly two states;
// the transitions live in AddParticipant and RemoveParticipant below.
type PotStatus string

const (
	StatusRecruiting PotStatus = "RECRUITING"
	StatusCompleted  PotStatus = "COMPLETED"
)

// PotCategory is the closed set of pot categories. Stored as its string
// value, defaulting to CategoryEtc.
type PotCategory string

const (
	CategoryChicken  PotCategory = "CHICKEN"
	CategoryPizza    PotCategory = "PIZZA"
	CategoryDelivery PotCategory = "DELIVERY"
	CategoryGrocery  PotCategory = "GROCERY"
	CategoryDaily    PotCategory = "DAILY"
	CategoryEtc      PotCategory = "ETC"
)

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c PotCategory) bool {
	switch c {
	case CategoryChicken, CategoryPizza, CategoryDelivery, CategoryGrocery, CategoryDaily, CategoryEtc:
		return true
	}
	return false
}

// Pot is a time-bounded group-purchase session anchored to a coordinate,
// with a fixed headcount cap and an in-session chat channel.
//
// INVARIANTS (hold at all times, enforced by the mutators below):
//   - 1 <= CurrentHeadcount <= MaximumHeadcount (the creator always counts)
//   - Status == COMPLETED exactly when CurrentHeadcount == MaximumHeadcount
//
// ImageKey stores the object-store key (e.g. "images/xyz.png"), NEVER the
// time-limited signed URL resolved from it. Responses carry the resolved URL;
// the row carries the key.
//
// Version supports optimistic concurrency: the repository only persists a
// headcount mutation when the row's version still matches the one this
// struct was loaded with, so two racing joins on the last open seat cannot
// both commit.
type Pot struct {
	ID               string      `json:"potId"            db:"id"`
	UserID           string      `json:"-"                db:"user_id"` // owning user
	Title            string      `json:"title"            db:"title"`
	Content          string      `json:"content"          db:"content"`
	ProductName      string      `json:"productName"      db:"product_name"`
	Price            int         `json:"price"            db:"price"`
	MaximumHeadcount int         `json:"maximumHeadcount" db:"maximum_headcount"`
	CurrentHeadcount int         `json:"currentHeadcount" db:"current_headcount"`
	Latitude         float64     `json:"latitude"         db:"latitude"`
	Longitude        float64     `json:"longitude"        db:"longitude"`
	Address          string      `json:"address"          db:"address"`
	DetailAddress    string      `json:"detailAddress"    db:"detail_address"`
	ImageKey         string      `json:"imageUrl"         db:"image_key"` // storage key; resolved to a signed URL in responses
	Category         PotCategory `json:"category"         db:"category"`
	Status           PotStatus   `json:"status"           db:"status"`
	Version          int64       `json:"-"                db:"version"`
	CreatedAt        time.Time   `json:"createdAt"        db:"created_at"`
	UpdatedAt        time.Time   `json:"updatedAt"        db:"updated_at"`
}

// PotFields are the mutable attributes supplied by create and update.
type PotFields struct {
	Title            string
	Content          string
	ProductName      string
	Price            int
	MaximumHeadcount int
	Latitude         float64
	Longitude        float64
	Address          string
	DetailAddress    string
	ImageKey         string
	Category         PotCategory
}

// NewPot builds a pot in its initial state: the owner is the first and only
// participant, so CurrentHeadcount starts at 1 and the pot is RECRUITING.
// A cap below 1 could never hold the creator and is rejected outright.
func NewPot(ownerID string, f PotFields) (*Pot, error) {
	if f.MaximumHeadcount < 1 {
		return nil, apperror.ValidationFailed("maximumHeadcount", "maximum headcount must be at least 1")
	}
	category := f.Category
	if category == "" {
		category = CategoryEtc
	}
	if !ValidCategory(category) {
		return nil, apperror.ValidationFailed("category", "unknown pot category")
	}

	p := &Pot{
		UserID:           ownerID,
		Title:            f.Title,
		Content:          f.Content,
		ProductName:      f.ProductName,
		Price:            f.Price,
		MaximumHeadcount: f.MaximumHeadcount,
		CurrentHeadcount: 1,
		Latitude:         f.Latitude,
		Longitude:        f.Longitude,
		Address:          f.Address,
		DetailAddress:    f.DetailAddress,
		ImageKey:         f.ImageKey,
		Category:         category,
		Status:           StatusRecruiting,
	}
	// A cap of exactly 1 is full the moment it is created.
	if p.CurrentHeadcount == p.MaximumHeadcount {
		p.Status = StatusCompleted
	}
	return p, nil
}

// AddParticipant admits one more member.
//
// Precondition: an open seat. On the transition that fills the last seat the
// pot flips to COMPLETED. The caller must persist the change with a version
// check — this method only mutates the in-memory aggregate.
func (p *Pot) AddParticipant() error {
	if p.CurrentHeadcount >= p.MaximumHeadcount {
		return apperror.CapacityExceeded(p.ID)
	}
	p.CurrentHeadcount++
	if p.CurrentHeadcount == p.MaximumHeadcount {
		p.Status = StatusCompleted
	}
	return nil
}

// RemoveParticipant releases one seat.
//
// The headcount floor is 1: the creator's seat is permanent, so a pot whose
// only remaining member is the owner rejects the leave. Dropping below the
// cap always reopens recruiting, even on a previously COMPLETED pot.
func (p *Pot) RemoveParticipant() error {
	if p.CurrentHeadcount <= 1 {
		return apperror.OwnerCannotLeave(p.ID)
	}
	p.CurrentHeadcount--
	if p.CurrentHeadcount < p.MaximumHeadcount {
		p.Status = StatusRecruiting
	}
	return nil
}

// ApplyUpdate overwrites the mutable fields from f.
//
// The image key is only overwritten when imageReplaced is true. Clients that
// did not change the image send back the signed URL they were given on read;
// writing that URL over the stored key would permanently clobber it, so the
// service passes imageReplaced=false in that case and the key survives.
//
// The headcount cap may change, so the status is recomputed against the new
// cap: a pot that was COMPLETED at 3/3 becomes RECRUITING when the cap is
// raised to 5.
func (p *Pot) ApplyUpdate(f PotFields, imageReplaced bool) error {
	if f.MaximumHeadcount < p.CurrentHeadcount {
		return apperror.ValidationFailed("maximumHeadcount", "maximum headcount cannot be below the current headcount")
	}
	category := f.Category
	if category == "" {
		category = CategoryEtc
	}
	if !ValidCategory(category) {
		return apperror.ValidationFailed("category", "unknown pot category")
	}

	p.Title = f.Title
	p.Content = f.Content
	p.ProductName = f.ProductName
	p.Price = f.Price
	p.MaximumHeadcount = f.MaximumHeadcount
	p.Latitude = f.Latitude
	p.Longitude = f.Longitude
	p.Address = f.Address
	p.DetailAddress = f.DetailAddress
	p.Category = category
	if imageReplaced {
		p.ImageKey = f.ImageKey
	}

	if p.CurrentHeadcount == p.MaximumHeadcount {
		p.Status = StatusCompleted
	} else {
		p.Status = StatusRecruiting
	}
	return nil
}
