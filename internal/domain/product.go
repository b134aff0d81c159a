package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxImages is the number of image slots a product carries.
const MaxImages = 5

// DefaultCategory is assigned when a product is saved without a category.
const DefaultCategory = "General"

// ImageSlots holds up to MaxImages image references in display order.
// A nil entry is an empty slot.
type ImageSlots [MaxImages]*string

// SlotsFromURLs fills slots in order from urls, dropping anything past MaxImages.
func SlotsFromURLs(urls []string) ImageSlots {
	var slots ImageSlots
	for i, u := range urls {
		if i >= MaxImages {
			break
		}
		slots[i] = &u
	}
	return slots
}

// URLs returns the non-empty references in slot order.
func (s ImageSlots) URLs() []string {
	urls := make([]string, 0, MaxImages)
	for _, ref := range s {
		if ref != nil && *ref != "" {
			urls = append(urls, *ref)
		}
	}
	return urls
}

// FirstFree returns the index of the first empty slot, or -1 when all are taken.
func (s ImageSlots) FirstFree() int {
	for i, ref := range s {
		if ref == nil || *ref == "" {
			return i
		}
	}
	return -1
}

// Contains reports whether url occupies any slot.
func (s ImageSlots) Contains(url string) bool {
	for _, ref := range s {
		if ref != nil && *ref == url {
			return true
		}
	}
	return false
}

// Product is the single catalog entity.
type Product struct {
	ID          int64
	Name        string
	Intro       string
	Description string
	Price       decimal.Decimal
	Category    string
	Images      ImageSlots
	Published   bool
	SoldOut     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductPatch describes a partial update. Nil fields are left untouched;
// a non-nil Images replaces all five slots, nil entries clearing them.
type ProductPatch struct {
	Name        *string
	Intro       *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	Images      *ImageSlots
	Published   *bool
	SoldOut     *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Intro == nil && p.Description == nil && p.Price == nil &&
		p.Category == nil && p.Images == nil && p.Published == nil && p.SoldOut == nil
}
