package classify

import (
	"context"
	"strings"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/logger"
)

// enrichResolver resolves the sender's CRM identity: contact by email, then
// the contact's company, then company by domain. It always declines so the
// fold continues to the AI stage; its job is filling rc.CRM. Each lookup is
// best effort and the pipeline proceeds with whatever partial identity it
// found.
func enrichResolver(crm out.CRM) Resolver {
	return Resolver{
		Name: "crm_enrichment",
		Fn: func(ctx context.Context, rc *RunContext) (*domain.Classification, error) {
			identity := &domain.CRMIdentity{}
			log := logger.WithField("sender", rc.Msg.SenderEmail)

			contact, err := crm.SearchContactByEmail(ctx, rc.Msg.SenderEmail)
			if err != nil {
				log.WithError(err).Warn("CRM contact lookup failed")
			} else if contact != nil {
				identity.ContactID = contact.ID
			}

			if identity.ContactID != "" {
				company, err := crm.GetContactCompany(ctx, identity.ContactID)
				if err != nil {
					log.WithError(err).Warn("CRM contact-company lookup failed")
				} else if company != nil {
					applyCompany(identity, company)
				}
			}

			if identity.CompanyID == "" && rc.Msg.SenderDomain != "" {
				company, err := crm.SearchCompanyByDomain(ctx, rc.Msg.SenderDomain)
				if err != nil {
					log.WithError(err).Warn("CRM company-by-domain lookup failed")
				} else if company != nil {
					applyCompany(identity, company)
				}
			}

			identity.IsExistingClient = isExistingClient(identity, rc)
			rc.CRM = identity

			return nil, nil
		},
	}
}

func applyCompany(identity *domain.CRMIdentity, company *domain.Company) {
	identity.CompanyID = company.ID
	identity.CompanyName = company.Name
	identity.CompanyType = company.Type
}

// isExistingClient: company type equals the customer marker, or the sender
// domain appears in the client registry.
func isExistingClient(identity *domain.CRMIdentity, rc *RunContext) bool {
	if identity.CompanyType != "" &&
		strings.EqualFold(identity.CompanyType, rc.Snapshot.CustomerMarker) {
		return true
	}
	return rc.Snapshot.KnownClientDomain(rc.Msg.SenderDomain)
}
