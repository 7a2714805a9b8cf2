package apiclient

// ClientRegistration is the client sign-up form. ConfirmPassword is checked
// locally and never sent.
type ClientRegistration struct {
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,strongpassword"`
	ConfirmPassword string `json:"-" validate:"eqfield=Password"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileUpdate struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

type PasswordUpdate struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,strongpassword"`
	ConfirmPassword string `json:"-" validate:"eqfield=NewPassword"`
}

// Document is one uploaded file.
type Document struct {
	Name        string `json:"name" validate:"required"`
	ContentType string `json:"contentType" validate:"eq=application/pdf"`
	Data        []byte `json:"data" validate:"required,max=5242880"`
}

// SupplierDocuments are the three PDFs a supplier uploads to finish sign-up.
type SupplierDocuments struct {
	TaxNumber          *Document `json:"Tax_number" validate:"required"`
	Identity           *Document `json:"identity" validate:"required"`
	CommercialRegister *Document `json:"commercial_register" validate:"required"`
}

type ClientData struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type Device struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Browser    string `json:"browser"`
	LastActive string `json:"lastActive"`
	Current    bool   `json:"current,omitempty"`
}

type DeviceList struct {
	Devices []Device `json:"devices"`
}
