package core

import (
	"bankcore/internal/index"
	"bankcore/pkg/domain"
)

// Secondary index names. Unique indexes map a derived value to exactly one
// primary key; ref indexes map a parent key to its dependents.
const (
	IndexISO2       = "iso2"
	IndexCode       = "code"
	IndexName       = "name"
	IndexExternalID = "external_id"
	RefCountry      = "country"
	RefSubdivision  = "country_subdivision"
	RefLocality     = "locality"
	RefLocation     = "location"
	RefOrganization = "organization"
	RefDuplicateOf  = "duplicate_of"
	RefOwnerPerson  = "owner_person"
)

func optional(p *string) (string, bool) {
	if p == nil || *p == "" {
		return "", false
	}
	return *p, true
}

var countryDesc = &Descriptor[domain.Country]{
	Tables: tablesFor(domain.EntityCountry),
	Key:    func(c domain.Country) string { return c.ID },
	WithKey: func(c domain.Country, id string) domain.Country {
		c.ID = id
		return c
	},
	Project: func(c domain.Country) Record {
		return Record{
			ID:     c.ID,
			Unique: map[string]string{IndexISO2: c.ISO2},
		}
	},
	Dependents: []Dependent{{Kind: domain.EntityCountrySubdivision, Index: RefCountry}},
}

var subdivisionDesc = &Descriptor[domain.CountrySubdivision]{
	Tables: tablesFor(domain.EntityCountrySubdivision),
	Key:    func(s domain.CountrySubdivision) string { return s.ID },
	WithKey: func(s domain.CountrySubdivision, id string) domain.CountrySubdivision {
		s.ID = id
		return s
	},
	Project: func(s domain.CountrySubdivision) Record {
		return Record{
			ID: s.ID,
			// Codes repeat across countries, so the unique value is the
			// hash of (country, code).
			Unique: map[string]string{IndexCode: index.KeyOf(s.CountryID, s.Code)},
			Refs:   map[string]string{RefCountry: s.CountryID},
		}
	},
	Parents: []Parent[domain.CountrySubdivision]{
		{Kind: domain.EntityCountry, Key: func(s domain.CountrySubdivision) (string, bool) { return s.CountryID, s.CountryID != "" }},
	},
	Dependents: []Dependent{{Kind: domain.EntityLocality, Index: RefSubdivision}},
}

var localityDesc = &Descriptor[domain.Locality]{
	Tables: tablesFor(domain.EntityLocality),
	Key:    func(l domain.Locality) string { return l.ID },
	WithKey: func(l domain.Locality, id string) domain.Locality {
		l.ID = id
		return l
	},
	Project: func(l domain.Locality) Record {
		return Record{
			ID:     l.ID,
			Unique: map[string]string{IndexName: index.KeyOf(l.CountrySubdivisionID, l.Name)},
			Refs:   map[string]string{RefSubdivision: l.CountrySubdivisionID},
		}
	},
	Parents: []Parent[domain.Locality]{
		{Kind: domain.EntityCountrySubdivision, Key: func(l domain.Locality) (string, bool) {
			return l.CountrySubdivisionID, l.CountrySubdivisionID != ""
		}},
	},
	Dependents: []Dependent{{Kind: domain.EntityLocation, Index: RefLocality}},
}

var locationDesc = &Descriptor[domain.Location]{
	Tables: tablesFor(domain.EntityLocation),
	Key:    func(l domain.Location) string { return l.ID },
	WithKey: func(l domain.Location, id string) domain.Location {
		l.ID = id
		return l
	},
	Project: func(l domain.Location) Record {
		return Record{
			ID:   l.ID,
			Refs: map[string]string{RefLocality: l.LocalityID},
		}
	},
	Parents: []Parent[domain.Location]{
		{Kind: domain.EntityLocality, Key: func(l domain.Location) (string, bool) { return l.LocalityID, l.LocalityID != "" }},
	},
	Dependents: []Dependent{{Kind: domain.EntityPerson, Index: RefLocation}},
}

var personDesc = &Descriptor[domain.Person]{
	Tables: tablesFor(domain.EntityPerson),
	Key:    func(p domain.Person) string { return p.ID },
	WithKey: func(p domain.Person, id string) domain.Person {
		p.ID = id
		return p
	},
	Project: func(p domain.Person) Record {
		rec := Record{
			ID:     p.ID,
			Unique: map[string]string{IndexExternalID: index.KeyOf(p.ExternalID)},
			Refs:   map[string]string{},
		}
		if v, ok := optional(p.OrganizationPersonID); ok {
			rec.Refs[RefOrganization] = v
		}
		if v, ok := optional(p.LocationID); ok {
			rec.Refs[RefLocation] = v
		}
		if v, ok := optional(p.DuplicateOfPersonID); ok {
			rec.Refs[RefDuplicateOf] = v
		}
		return rec
	},
	Parents: []Parent[domain.Person]{
		{Kind: domain.EntityPerson, Key: func(p domain.Person) (string, bool) { return optional(p.OrganizationPersonID) }},
		{Kind: domain.EntityLocation, Key: func(p domain.Person) (string, bool) { return optional(p.LocationID) }},
		{Kind: domain.EntityPerson, Key: func(p domain.Person) (string, bool) { return optional(p.DuplicateOfPersonID) }},
	},
	Dependents: []Dependent{
		{Kind: domain.EntityPerson, Index: RefOrganization},
		{Kind: domain.EntityPerson, Index: RefDuplicateOf},
		{Kind: domain.EntityEntityReference, Index: RefOwnerPerson},
	},
}

var entityReferenceDesc = &Descriptor[domain.EntityReference]{
	Tables: tablesFor(domain.EntityEntityReference),
	Key:    func(e domain.EntityReference) string { return e.ID },
	WithKey: func(e domain.EntityReference, id string) domain.EntityReference {
		e.ID = id
		return e
	},
	Project: func(e domain.EntityReference) Record {
		rec := Record{
			ID:     e.ID,
			Unique: map[string]string{IndexExternalID: index.KeyOf(e.Kind, e.ExternalID)},
			Refs:   map[string]string{},
		}
		if v, ok := optional(e.OwnerPersonID); ok {
			rec.Refs[RefOwnerPerson] = v
		}
		return rec
	},
	Parents: []Parent[domain.EntityReference]{
		{Kind: domain.EntityPerson, Key: func(e domain.EntityReference) (string, bool) { return optional(e.OwnerPersonID) }},
	},
}

// CountryRepository adds the ISO2 finder to the generic surface.
type CountryRepository struct{ Repository[domain.Country] }

// FindByISO2 resolves an ISO2 code to the country's primary key.
func (r CountryRepository) FindByISO2(code string) (string, bool) {
	return r.LookupUnique(IndexISO2, code)
}

// SubdivisionRepository adds country-scoped finders.
type SubdivisionRepository struct{ Repository[domain.CountrySubdivision] }

// FindByCode resolves (country, code) to the subdivision's primary key.
func (r SubdivisionRepository) FindByCode(countryID, code string) (string, bool) {
	return r.LookupUnique(IndexCode, index.KeyOf(countryID, code))
}

// ListByCountry lists the subdivisions of a country.
func (r SubdivisionRepository) ListByCountry(countryID string) []string {
	return r.ListRefs(RefCountry, countryID)
}

// LocalityRepository adds subdivision-scoped finders.
type LocalityRepository struct{ Repository[domain.Locality] }

// FindByName resolves (subdivision, name) to the locality's primary key.
func (r LocalityRepository) FindByName(subdivisionID, name string) (string, bool) {
	return r.LookupUnique(IndexName, index.KeyOf(subdivisionID, name))
}

// ListBySubdivision lists the localities of a subdivision.
func (r LocalityRepository) ListBySubdivision(subdivisionID string) []string {
	return r.ListRefs(RefSubdivision, subdivisionID)
}

// LocationRepository adds locality-scoped finders.
type LocationRepository struct{ Repository[domain.Location] }

// ListByLocality lists the locations within a locality.
func (r LocationRepository) ListByLocality(localityID string) []string {
	return r.ListRefs(RefLocality, localityID)
}

// PersonRepository adds identifier and relationship finders.
type PersonRepository struct{ Repository[domain.Person] }

// FindByExternalID resolves an external identifier to the person's primary key.
func (r PersonRepository) FindByExternalID(externalID string) (string, bool) {
	return r.LookupUnique(IndexExternalID, index.KeyOf(externalID))
}

// ListByOrganization lists the persons belonging to an organization person.
func (r PersonRepository) ListByOrganization(organizationID string) []string {
	return r.ListRefs(RefOrganization, organizationID)
}

// EntityReferenceRepository adds the external-identifier finder.
type EntityReferenceRepository struct{ Repository[domain.EntityReference] }

// FindByExternalID resolves (kind, external id) to the reference's primary key.
func (r EntityReferenceRepository) FindByExternalID(kind, externalID string) (string, bool) {
	return r.LookupUnique(IndexExternalID, index.KeyOf(kind, externalID))
}

// ListByOwner lists the references owned by a person.
func (r EntityReferenceRepository) ListByOwner(personID string) []string {
	return r.ListRefs(RefOwnerPerson, personID)
}

// Countries binds the country repository to this unit of work.
func (s *Session) Countries() CountryRepository {
	return CountryRepository{newRepository(s, countryDesc)}
}

// Subdivisions binds the country-subdivision repository to this unit of work.
func (s *Session) Subdivisions() SubdivisionRepository {
	return SubdivisionRepository{newRepository(s, subdivisionDesc)}
}

// Localities binds the locality repository to this unit of work.
func (s *Session) Localities() LocalityRepository {
	return LocalityRepository{newRepository(s, localityDesc)}
}

// Locations binds the location repository to this unit of work.
func (s *Session) Locations() LocationRepository {
	return LocationRepository{newRepository(s, locationDesc)}
}

// Persons binds the person repository to this unit of work.
func (s *Session) Persons() PersonRepository {
	return PersonRepository{newRepository(s, personDesc)}
}

// EntityReferences binds the entity-reference repository to this unit of work.
func (s *Session) EntityReferences() EntityReferenceRepository {
	return EntityReferenceRepository{newRepository(s, entityReferenceDesc)}
}
