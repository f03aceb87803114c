package entity

// ExternalLead is a Lead in the field names of the CRM Leads module. It is
// built fresh for every send attempt and never stored.
type ExternalLead struct {
	FirstName              string `json:"First_Name"`
	LastName               string `json:"Last_Name"`
	Email                  string `json:"Email"`
	Phone                  string `json:"Phone,omitempty"`
	Description            string `json:"Description"`
	AdditionalRequirements string `json:"Additional_Requirements"`
	ProductInterest        string `json:"Product_Interest,omitempty"`
	LeadSource             string `json:"Lead_Source"`
	LeadStatus             string `json:"Lead_Status"`
	Rating                 string `json:"Rating"`
}
