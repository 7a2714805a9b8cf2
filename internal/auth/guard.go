package auth

import "context"

const (
	LoginPath = "/login"
	HomePath  = "/home"
)

type MenuItem struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Dashboard is the layout shown to one role.
type Dashboard struct {
	Role  string     `json:"role"`
	Title string     `json:"title"`
	Home  string     `json:"home"`
	Menu  []MenuItem `json:"menu"`
}

var dashboards = map[string]Dashboard{
	RoleAdmin: {
		Role:  RoleAdmin,
		Title: "Administration",
		Home:  "/dashboard",
		Menu: []MenuItem{
			{Label: "Tableau de bord", Href: "/dashboard"},
			{Label: "Utilisateurs", Href: "/dashboard/users"},
			{Label: "Administrateurs", Href: "/dashboard/admins"},
			{Label: "Commandes", Href: "/dashboard/orders"},
			{Label: "Abonnements", Href: "/dashboard/subscriptions"},
			{Label: "Statistiques", Href: "/dashboard/statistics"},
			{Label: "Profil", Href: "/dashboard/profile"},
		},
	},
	RoleSupplier: {
		Role:  RoleSupplier,
		Title: "Espace fournisseur",
		Home:  "/dashboard-supplier",
		Menu: []MenuItem{
			{Label: "Tableau de bord", Href: "/dashboard-supplier"},
			{Label: "Mes Produits", Href: "/dashboard-supplier/products"},
			{Label: "Commandes", Href: "/dashboard-supplier/orders"},
			{Label: "Statistiques", Href: "/dashboard-supplier/statistics"},
			{Label: "Mon Magasin", Href: "/dashboard-supplier/store"},
			{Label: "Profil", Href: "/dashboard-supplier/profile"},
		},
	},
	RoleClient: {
		Role:  RoleClient,
		Title: "Espace client",
		Home:  HomePath,
		Menu: []MenuItem{
			{Label: "Accueil", Href: HomePath},
			{Label: "Produits", Href: "/products"},
			{Label: "Comparer", Href: "/products/compare"},
			{Label: "Profil", Href: "/profile"},
		},
	},
}

// DashboardFor returns the layout for role.
func DashboardFor(role string) (Dashboard, bool) {
	d, ok := dashboards[role]
	if !ok {
		return Dashboard{}, false
	}
	menu := make([]MenuItem, len(d.Menu))
	copy(menu, d.Menu)
	d.Menu = menu
	return d, true
}

// Decision tells a role-scoped page whether to render or where to go instead.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Authorize applies the dashboard layout rule: no token or an undecodable
// one sends the user to the login page, a different role sends them home.
// This is routing, not access control.
func Authorize(token, required string) Decision {
	claims, err := DecodeClaims(token)
	if err != nil {
		return Decision{Redirect: LoginPath}
	}
	if claims.Role != required {
		return Decision{Redirect: HomePath, Role: claims.Role}
	}
	return Decision{Allowed: true, Role: claims.Role}
}

// AuthorizeSession is Authorize over the token held by s.
func AuthorizeSession(ctx context.Context, s *Session, required string) Decision {
	token, err := s.Token(ctx)
	if err != nil {
		return Decision{Redirect: LoginPath}
	}
	return Authorize(token, required)
}
