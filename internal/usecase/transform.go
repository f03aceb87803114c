package usecase

import (
	"strings"

	"github.com/xavierca1/leadsync/internal/entity"
)

const (
	// UnknownLastName fills Last_Name for single-word names; the CRM rejects an empty one.
	UnknownLastName = "Unknown"

	externalLeadStatus = "New"
	// Every inbound lead is rated Hot.
	externalLeadRating = "Hot"
)

var leadSourceLabels = map[entity.LeadSource]string{
	entity.LeadSourceWebForm: "Website Form",
	entity.LeadSourceChatbot: "Chatbot",
}

// SplitName returns the first whitespace-separated token and the remaining
// tokens joined by a single space.
func SplitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", UnknownLastName
	}
	if len(parts) == 1 {
		return parts[0], UnknownLastName
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func LeadSourceLabel(source entity.LeadSource) string {
	if label, ok := leadSourceLabels[source]; ok {
		return label
	}
	return "Website"
}

// ToExternalLead maps a lead onto the CRM Leads schema. The message goes into
// both Description and Additional_Requirements; the CRM shows them in different panels.
func ToExternalLead(lead entity.Lead) entity.ExternalLead {
	first, last := SplitName(lead.Name)

	return entity.ExternalLead{
		FirstName:              first,
		LastName:               last,
		Email:                  strings.TrimSpace(lead.Email),
		Phone:                  strings.TrimSpace(lead.Phone),
		Description:            lead.Message,
		AdditionalRequirements: lead.Message,
		ProductInterest:        strings.TrimSpace(lead.ProductName),
		LeadSource:             LeadSourceLabel(lead.Source),
		LeadStatus:             externalLeadStatus,
		Rating:                 externalLeadRating,
	}
}
