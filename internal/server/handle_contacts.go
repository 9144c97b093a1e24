package server

import (
	"net/http"

	"github.com/safeguardhq/safeguard/internal/emergency"
)

type ContactsResponse struct {
	Contacts []emergency.ContactCard `json:"contacts"`
}

func handleContacts(coord *emergency.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contacts, err := coord.Contacts(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if contacts == nil {
			contacts = []emergency.ContactCard{}
		}
		writeJSON(w, http.StatusOK, ContactsResponse{Contacts: contacts})
	}
}
