package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MarcGrol/paymentbackend/lib/myerrors"
	"github.com/MarcGrol/paymentbackend/lib/myhttpclient"
)

type accountClient struct {
	baseURL string
	sender  myhttpclient.HTTPSender
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewAccountClient(cfg Config) AccountFetcher {
	return &accountClient{
		baseURL: cfg.BaseURL,
		sender:  myhttpclient.NewJSONHTTPClient(cfg.Timeout),
	}
}

type accountResponse struct {
	Name            string `json:"name"`
	ExtendedProfile []struct {
		FieldName  string `json:"field_name"`
		FieldValue string `json:"field_value"`
	} `json:"extended_profile"`
}

func (ac accountClient) AccountDetails(c context.Context, username string) (Enrichment, error) {
	url := fmt.Sprintf("%s/api/user/v1/accounts/%s", ac.baseURL, username)

	httpStatus, respPayload, err := ac.sender.Send(c, http.MethodGet, url, nil)
	if err != nil {
		return Enrichment{}, myerrors.NewUnavailableError(fmt.Errorf("error fetching account details of %s: %s", username, err))
	}
	if httpStatus != http.StatusOK {
		return Enrichment{}, myerrors.NewNotFoundError(fmt.Errorf("account details of %s returned status %d", username, httpStatus))
	}

	account := accountResponse{}
	err = json.Unmarshal(respPayload, &account)
	if err != nil {
		return Enrichment{}, myerrors.NewInternalError(fmt.Errorf("error parsing account details of %s: %s", username, err))
	}

	enrichment := Enrichment{
		FullName: account.Name,
	}
	for _, field := range account.ExtendedProfile {
		if field.FieldName == "dni" {
			enrichment.DocumentID = field.FieldValue
			break
		}
	}

	return enrichment, nil
}
