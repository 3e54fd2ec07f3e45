// Package domain defines the reference entities, record projections, and
// error taxonomy used by the bankcore persistence engine.
package domain

// EntityType identifies the kind of record stored by the persistence core.
type EntityType string

// Supported entity kind identifiers used in index caches and persistence tables.
const (
	// EntityCountry identifies a country reference record.
	EntityCountry EntityType = "country"
	// EntityCountrySubdivision identifies a first-level subdivision of a country.
	EntityCountrySubdivision EntityType = "country_subdivision"
	// EntityLocality identifies a locality within a subdivision.
	EntityLocality EntityType = "locality"
	// EntityLocation identifies a street-level location within a locality.
	EntityLocation EntityType = "location"
	// EntityPerson identifies a natural or legal person record.
	EntityPerson EntityType = "person"
	// EntityEntityReference identifies an external-system reference owned by a person.
	EntityEntityReference EntityType = "entity_reference"
)

// Country is a reference country with an ISO 3166-1 alpha-2 code and up to
// three localized names.
type Country struct {
	ID     string `json:"id"`
	ISO2   string `json:"iso2"`
	NameL1 string `json:"name_l1"`
	NameL2 string `json:"name_l2,omitempty"`
	NameL3 string `json:"name_l3,omitempty"`
}

// CountrySubdivision is a first-level administrative subdivision. The code is
// unique within its country.
type CountrySubdivision struct {
	ID        string `json:"id"`
	CountryID string `json:"country_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
}

// Locality is a city, town, or village within a subdivision. The name is
// unique within its subdivision.
type Locality struct {
	ID                   string `json:"id"`
	CountrySubdivisionID string `json:"country_subdivision_id"`
	Name                 string `json:"name"`
	PostalCode           string `json:"postal_code,omitempty"`
}

// Location is a street-level address within a locality.
type Location struct {
	ID          string `json:"id"`
	LocalityID  string `json:"locality_id"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

// Person is a customer, organization, or other party. Organization and
// duplicate-of references point at other persons; both are optional and must
// exist at write time when set.
type Person struct {
	ID                   string  `json:"id"`
	ExternalID           string  `json:"external_id"`
	DisplayName          string  `json:"display_name"`
	OrganizationPersonID *string `json:"organization_person_id,omitempty"`
	LocationID           *string `json:"location_id,omitempty"`
	DuplicateOfPersonID  *string `json:"duplicate_of_person_id,omitempty"`
}

// EntityReference links a person to an identifier in an external system
// (core ledger, card processor, compliance screen, ...).
type EntityReference struct {
	ID            string  `json:"id"`
	ExternalID    string  `json:"external_id"`
	Kind          string  `json:"kind"`
	OwnerPersonID *string `json:"owner_person_id,omitempty"`
}
