// Static mapping from entity types to remote collection names.
//
// The mapping must stay in lock step with the backend schema: a wrong name
// here makes every job of that type fail until it is corrected. Unknown
// entity types are a returned error, never a guessed name, so a schema
// mismatch surfaces as a permanent job failure with a clear message instead
// of writes landing in a phantom collection.
package collections

import (
	"fmt"

	"github.com/XBurnsX/toutiebudget-sync/models"
)

// UnknownEntityTypeError indicates an entity type with no remote collection.
type UnknownEntityTypeError struct {
	Type models.EntityType
}

func (e *UnknownEntityTypeError) Error() string {
	return fmt.Sprintf("collections: no remote collection for entity type %q", e.Type)
}

// Name returns the remote collection for the given entity type.
func Name(t models.EntityType) (string, error) {
	switch t {
	case models.EntityCompteCheque:
		return "comptes_cheques", nil
	case models.EntityCompteCredit:
		return "comptes_credits", nil
	case models.EntityCompteDette:
		return "comptes_dettes", nil
	case models.EntityCompteInvestissement:
		return "comptes_investissement", nil
	case models.EntityTransaction:
		return "transactions", nil
	case models.EntityEnveloppe:
		return "enveloppes", nil
	case models.EntityCategorie:
		return "categories", nil
	case models.EntityAllocationMensuelle:
		return "allocations_mensuelles", nil
	case models.EntityTiers:
		return "tiers", nil
	case models.EntityPretPersonnel:
		return "prets_personnels", nil
	}
	return "", &UnknownEntityTypeError{Type: t}
}
