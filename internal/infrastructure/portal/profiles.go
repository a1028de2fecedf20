package portal

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Portal names
const (
	Wherex         = "wherex"
	MercadoPublico = "mercado_publico"
	Senegocia      = "senegocia"
	Facebook       = "facebook"
)

// Profile describes a portal's login, listing and offer forms.
// Selectors are goquery (CSS) selectors; field names are form input names.
type Profile struct {
	Name        string
	DisplayName string
	BaseURL     string
	StatusLabel string

	LoginPath            string
	LoginFormSelector    string
	UsernameField        string
	PasswordField        string
	LoginFailureSelector string

	ListingPath       string
	ItemSelector      string
	ItemLinkSelector  string
	ItemTitleSelector string
	ItemLineSelector  string
	ItemIDAttr        string
	NextPageSelector  string
	MaxPages          int

	OfferFormSelector  string
	CodeField          string
	DescriptionField   string
	PriceField         string
	ImageField         string
	DatasheetField     string
	OfferErrorSelector string

	SingleOfferPerTender bool
}

// URL resolves a path against the profile's base URL
func (p Profile) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(p.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// WithBaseURL points the profile at another host. Absolute login and
// listing paths keep their path and query but move to baseURL too.
func (p Profile) WithBaseURL(baseURL string) Profile {
	p.BaseURL = baseURL
	p.LoginPath = relativePath(p.LoginPath)
	p.ListingPath = relativePath(p.ListingPath)
	return p
}

func relativePath(path string) string {
	u, err := url.Parse(path)
	if err != nil || !u.IsAbs() {
		return path
	}
	u.Scheme, u.Host, u.User = "", "", nil
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// Validate checks that the profile can drive a session
func (p Profile) Validate() error {
	required := map[string]string{
		"name":           p.Name,
		"base_url":       p.BaseURL,
		"username_field": p.UsernameField,
		"password_field": p.PasswordField,
		"listing_path":   p.ListingPath,
		"item_selector":  p.ItemSelector,
		"offer_form":     p.OfferFormSelector,
	}
	var missing []string
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("portal profile %q: missing %s", p.Name, strings.Join(missing, ", "))
	}
	return nil
}

// tenderProfile builds the form layout shared by the tender portals
func tenderProfile(name, display, baseURL, usernameField, passwordField, itemSelector string) Profile {
	return Profile{
		Name:        name,
		DisplayName: display,
		BaseURL:     baseURL,
		StatusLabel: "Postulado en " + display,

		LoginPath:            "/",
		LoginFormSelector:    "form",
		UsernameField:        usernameField,
		PasswordField:        passwordField,
		LoginFailureSelector: ".alert-danger, .login-error",

		ListingPath:       "/oportunidades",
		ItemSelector:      itemSelector,
		ItemLinkSelector:  "a[href]",
		ItemTitleSelector: ".titulo, h3",
		ItemLineSelector:  ".item, li",
		ItemIDAttr:        "data-id",
		NextPageSelector:  "a[rel=next]",
		MaxPages:          50,

		OfferFormSelector:  "form.postulacion, form#oferta",
		CodeField:          "codigo",
		DescriptionField:   "descripcion",
		PriceField:         "precio",
		ImageField:         "imagen",
		DatasheetField:     "ficha_tecnica",
		OfferErrorSelector: ".alert-danger, .error",
	}
}

// wherexProfile logs in on login.wherex.com but lists tenders on www.wherex.com
func wherexProfile() Profile {
	p := tenderProfile(Wherex, "Wherex", "https://login.wherex.com", "email", "password", ".oportunidad-item")
	p.ListingPath = "https://www.wherex.com/oportunidades"
	return p
}

var builtinProfiles = map[string]Profile{
	Wherex:         wherexProfile(),
	MercadoPublico: tenderProfile(MercadoPublico, "MP", "https://proveedores.mercadopublico.cl", "Email", "Password", ".opportunity-row"),
	Senegocia:      tenderProfile(Senegocia, "Senegocia", "https://portal.senegocia.com", "email", "password", ".oportunidad-item"),
	Facebook: {
		Name:        Facebook,
		DisplayName: "Facebook",
		BaseURL:     "https://www.facebook.com",
		StatusLabel: "Postulado en Facebook",

		LoginPath:            "/login",
		LoginFormSelector:    "form#login_form, form",
		UsernameField:        "email",
		PasswordField:        "pass",
		LoginFailureSelector: "#error_box, ._9ay7",

		ListingPath:       "/marketplace/you/selling",
		ItemSelector:      "[data-listing-id]",
		ItemLinkSelector:  "a[href]",
		ItemTitleSelector: "span",
		ItemIDAttr:        "data-listing-id",
		MaxPages:          1,

		OfferFormSelector:  "form",
		CodeField:          "sku",
		DescriptionField:   "description",
		PriceField:         "price",
		ImageField:         "photos",
		OfferErrorSelector: "[role=alert]",

		SingleOfferPerTender: true,
	},
}

// LookupProfile returns a copy of a built-in portal profile
func LookupProfile(name string) (Profile, bool) {
	p, ok := builtinProfiles[name]
	return p, ok
}

// ProfileNames lists the built-in portals in their default run order
func ProfileNames() []string {
	return []string{Wherex, MercadoPublico, Senegocia, Facebook}
}
