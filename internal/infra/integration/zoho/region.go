package zoho

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Region holds the accounts (OAuth) and API hosts of one Zoho data center.
type Region struct {
	AccountsURL string
	APIURL      string
}

var regions = map[string]Region{
	"com": {AccountsURL: "https://accounts.zoho.com", APIURL: "https://www.zohoapis.com"},
	"in":  {AccountsURL: "https://accounts.zoho.in", APIURL: "https://www.zohoapis.in"},
}

// ResolveRegion returns the hosts for region. Non-empty overrides win, which
// also allows data centers not listed here.
func ResolveRegion(region, accountsURL, apiURL string) (Region, error) {
	r := regions[strings.ToLower(strings.TrimSpace(region))]
	if accountsURL != "" {
		r.AccountsURL = accountsURL
	}
	if apiURL != "" {
		r.APIURL = apiURL
	}
	if r.AccountsURL == "" || r.APIURL == "" {
		return Region{}, eris.Errorf("zoho: unknown region %q and no URL overrides", region)
	}
	r.AccountsURL = strings.TrimRight(r.AccountsURL, "/")
	r.APIURL = strings.TrimRight(r.APIURL, "/")
	return r, nil
}
