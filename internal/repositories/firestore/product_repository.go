package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/tindahan/api/internal/domain"
	pfirestore "github.com/tindahan/api/internal/platform/firestore"
)

const productsCollection = "products"

// productDocument is the persisted catalog product shape consumed during
// hydration. Name and image carry both historical field spellings.
type productDocument struct {
	Name        string   `firestore:"name"`
	ProductName string   `firestore:"productName"`
	Category    string   `firestore:"category"`
	CategoryID  string   `firestore:"categoryId"`
	Subcategory string   `firestore:"subcategory"`
	Cost        *float64 `firestore:"cost"`
	ImageURL    string   `firestore:"imageURL"`
	ImageURLAlt string   `firestore:"imageUrl"`
}

// ProductRepository loads catalog documents referenced by order line items.
type ProductRepository struct {
	products *pfirestore.Collection[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository: firestore provider is required")
	}
	return &ProductRepository{
		products: pfirestore.NewCollection[productDocument](provider, productsCollection),
	}, nil
}

// FindByID fetches a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProductDocument(doc.ID, doc.Data), nil
}

func decodeProductDocument(id string, doc productDocument) domain.Product {
	name := strings.TrimSpace(doc.Name)
	if name == "" {
		name = strings.TrimSpace(doc.ProductName)
	}
	image := strings.TrimSpace(doc.ImageURL)
	if image == "" {
		image = strings.TrimSpace(doc.ImageURLAlt)
	}
	return domain.Product{
		ID:          id,
		Name:        name,
		Category:    strings.TrimSpace(doc.Category),
		CategoryID:  strings.TrimSpace(doc.CategoryID),
		Subcategory: strings.TrimSpace(doc.Subcategory),
		Cost:        doc.Cost,
		ImageURL:    image,
	}
}
