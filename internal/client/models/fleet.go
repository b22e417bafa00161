package models

// Syncable is implemented by every entity that participates in collection
// reconciliation.
type Syncable interface {
	Identity() Identity
}

// PaymentStatus classifies how much of a trip's freight value has been paid.
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
)

// Vehicle is a truck or car owned by the account.
type Vehicle struct {
	ID    Identity `json:"id,omitzero"`
	Plate string   `json:"plate"`
	Model string   `json:"model"`
	Year  int      `json:"year,omitempty"`

	// TotalKm is the accumulated odometer distance. Trip distance changes
	// cascade into this field at the service layer, never inside the
	// reconciler.
	TotalKm float64 `json:"totalKm"`

	// LastMaintenanceKm is the odometer reading at the last oil change.
	LastMaintenanceKm float64 `json:"lastMaintenanceKm"`

	// OilChangeKm is the configured service interval; zero means the
	// engine-wide default applies.
	OilChangeKm float64 `json:"oilChangeKm,omitempty"`

	// PhotoKey references a cached image blob in the local blob store.
	PhotoKey string `json:"photoKey,omitempty"`
}

func (v Vehicle) Identity() Identity { return v.ID }

// Driver is a person licensed to operate vehicles of the fleet.
type Driver struct {
	ID      Identity `json:"id,omitzero"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone,omitempty"`
	License string   `json:"license,omitempty"`

	// CNHValidity is the license expiry date as entered by the user, in
	// "2006-01-02" form. It may be empty or malformed; the alert engine
	// skips such records instead of failing the recomputation.
	CNHValidity string `json:"cnhValidity,omitempty"`
}

func (d Driver) Identity() Identity { return d.ID }

// Trip is a completed or in-progress freight run.
type Trip struct {
	ID          Identity `json:"id,omitzero"`
	VehicleID   string   `json:"vehicleId,omitempty"`
	DriverID    string   `json:"driverId,omitempty"`
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`

	// DepartureDate and ReturnDate use "2006-01-02" form and may be empty.
	DepartureDate string `json:"departureDate,omitempty"`
	ReturnDate    string `json:"returnDate,omitempty"`

	DistanceKm    float64       `json:"distanceKm"`
	FuelCost      float64       `json:"fuelCost"`
	FreightValue  float64       `json:"freightValue"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
}

func (t Trip) Identity() Identity { return t.ID }

// Shipper is a customer whose freight the fleet carries.
type Shipper struct {
	ID    Identity `json:"id,omitzero"`
	Name  string   `json:"name"`
	City  string   `json:"city,omitempty"`
	Phone string   `json:"phone,omitempty"`
}

func (s Shipper) Identity() Identity { return s.ID }

// Trailer is a towed unit attached to a vehicle.
type Trailer struct {
	ID        Identity `json:"id,omitzero"`
	Plate     string   `json:"plate"`
	Kind      string   `json:"kind,omitempty"`
	VehicleID string   `json:"vehicleId,omitempty"`
}

func (t Trailer) Identity() Identity { return t.ID }

// Tire is a tracked tire mounted on a vehicle or trailer.
type Tire struct {
	ID        Identity `json:"id,omitzero"`
	Brand     string   `json:"brand"`
	Position  string   `json:"position,omitempty"`
	VehicleID string   `json:"vehicleId,omitempty"`
	KmAtMount float64  `json:"kmAtMount,omitempty"`
}

func (t Tire) Identity() Identity { return t.ID }
