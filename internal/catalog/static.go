package catalog

import (
	"context"

	"github.com/abdelhadiDevWeb/labocart/internal/domain"
)

var defaultProducts = []domain.Product{
	{ID: 1, Name: "Analyse de sang complète", Price: "89€", Category: "Analyses médicales",
		Description: "Analyse complète du sang incluant hémogramme, bilan lipidique, glycémie et fonction hépatique"},
	{ID: 2, Name: "Test ADN paternité", Price: "199€", Category: "Tests génétiques",
		Description: "Test de paternité par ADN avec résultats en 3-5 jours ouvrables"},
	{ID: 3, Name: "Analyse microbiologique", Price: "149€", Category: "Analyses médicales",
		Description: "Analyse microbiologique complète pour détection de bactéries et pathogènes"},
	{ID: 4, Name: "Test de dépistage", Price: "59€", Category: "Tests de dépistage",
		Description: "Test de dépistage rapide avec résultats en 24h"},
	{ID: 5, Name: "Analyse environnementale", Price: "249€", Category: "Analyses environnementales",
		Description: "Analyse complète de l'environnement pour qualité de l'air et de l'eau"},
	{ID: 6, Name: "Contrôle qualité alimentaire", Price: "179€", Category: "Contrôle qualité",
		Description: "Contrôle de qualité et sécurité alimentaire selon normes européennes"},
	{ID: 7, Name: "Analyse toxicologique", Price: "299€", Category: "Analyses médicales",
		Description: "Analyse toxicologique complète avec recherche de substances"},
	{ID: 8, Name: "Test génétique", Price: "349€", Category: "Tests génétiques",
		Description: "Test génétique complet avec rapport détaillé sur les prédispositions"},
	{ID: 9, Name: "Analyse de l'eau", Price: "129€", Category: "Analyses environnementales",
		Description: "Analyse complète de la qualité de l'eau potable"},
	{ID: 10, Name: "Test allergie", Price: "159€", Category: "Analyses médicales",
		Description: "Panel complet de tests allergiques pour identification des allergènes"},
	{ID: 11, Name: "Analyse de sol", Price: "199€", Category: "Analyses environnementales",
		Description: "Analyse complète de la composition et qualité du sol"},
	{ID: 12, Name: "Test de nutrition", Price: "89€", Category: "Analyses médicales",
		Description: "Analyse nutritionnelle avec recommandations personnalisées"},
}

// Static serves a fixed product list held in memory.
type Static struct {
	products []domain.Product
}

// NewStatic returns the built-in catalog of twelve services.
func NewStatic() *Static {
	return NewStaticWith(defaultProducts)
}

func NewStaticWith(products []domain.Product) *Static {
	cp := make([]domain.Product, len(products))
	copy(cp, products)
	return &Static{products: cp}
}

func (s *Static) All(context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *Static) Get(_ context.Context, id int64) (domain.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, ErrProductNotFound
}

func (s *Static) Search(_ context.Context, q Query) ([]domain.Product, error) {
	return filter(s.products, q), nil
}

func (s *Static) Categories(context.Context) ([]string, error) {
	return categories(s.products), nil
}

func (s *Static) Close() error {
	return nil
}
