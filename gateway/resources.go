package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// ReceiptRequest is the body of POST /v1/receipts/<number>.
type ReceiptRequest struct {
	Recipient   string `json:"recipient"`
	ReceiptType string `json:"receipt_type"` // "read" or "viewed"
	Timestamp   int64  `json:"timestamp"`
}

// ReceiptsClient sends read and viewed receipts.
type ReceiptsClient struct {
	client *Client
}

// Send delivers a receipt for a received message.
func (r *ReceiptsClient) Send(ctx context.Context, number string, req *ReceiptRequest) error {
	_, err := r.client.Request(ctx, http.MethodPost, "/v1/receipts/"+number, RequestOptions{Body: req})
	return err
}

// resourceClient is the shared shape of the auxiliary resource stubs:
// plain GET/POST/PUT/DELETE with JSON bodies under a fixed path root.
type resourceClient struct {
	client *Client
	root   string
}

// Get issues GET <root>/<path> and decodes the JSON response into out.
func (r *resourceClient) Get(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := r.client.Request(ctx, http.MethodGet, r.root+path, RequestOptions{Query: query})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Post issues POST <root>/<path> with a JSON body.
func (r *resourceClient) Post(ctx context.Context, path string, body, out any) error {
	resp, err := r.client.Request(ctx, http.MethodPost, r.root+path, RequestOptions{Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Put issues PUT <root>/<path> with a JSON body.
func (r *resourceClient) Put(ctx context.Context, path string, body any) error {
	_, err := r.client.Request(ctx, http.MethodPut, r.root+path, RequestOptions{Body: body})
	return err
}

// Delete issues DELETE <root>/<path>.
func (r *resourceClient) Delete(ctx context.Context, path string, body any) error {
	_, err := r.client.Request(ctx, http.MethodDelete, r.root+path, RequestOptions{Body: body})
	return err
}

// AccountsClient manages the registered account.
type AccountsClient struct{ resourceClient }

// ContactsClient lists and syncs contacts.
type ContactsClient struct{ resourceClient }

// DevicesClient links and lists devices.
type DevicesClient struct{ resourceClient }

// GroupsClient manages group membership.
type GroupsClient struct{ resourceClient }

// IdentitiesClient lists and trusts identities.
type IdentitiesClient struct{ resourceClient }

// ProfilesClient updates the account profile.
type ProfilesClient struct{ resourceClient }

// SearchClient checks number registration.
type SearchClient struct{ resourceClient }

// StickerPacksClient lists and installs sticker packs.
type StickerPacksClient struct{ resourceClient }

// Clients bundles every resource client over one shared HTTP core.
type Clients struct {
	Core *Client

	Messages     *MessagesClient
	Reactions    *ReactionsClient
	Receipts     *ReceiptsClient
	Attachments  *AttachmentsClient
	Accounts     *AccountsClient
	Contacts     *ContactsClient
	Devices      *DevicesClient
	Groups       *GroupsClient
	Identities   *IdentitiesClient
	Profiles     *ProfilesClient
	Search       *SearchClient
	StickerPacks *StickerPacksClient
}

// NewClients builds the full resource-client set over core.
func NewClients(core *Client) *Clients {
	return &Clients{
		Core:         core,
		Messages:     &MessagesClient{client: core},
		Reactions:    &ReactionsClient{client: core},
		Receipts:     &ReceiptsClient{client: core},
		Attachments:  &AttachmentsClient{client: core},
		Accounts:     &AccountsClient{resourceClient{client: core, root: "/v1/accounts"}},
		Contacts:     &ContactsClient{resourceClient{client: core, root: "/v1/contacts"}},
		Devices:      &DevicesClient{resourceClient{client: core, root: "/v1/devices"}},
		Groups:       &GroupsClient{resourceClient{client: core, root: "/v1/groups"}},
		Identities:   &IdentitiesClient{resourceClient{client: core, root: "/v1/identities"}},
		Profiles:     &ProfilesClient{resourceClient{client: core, root: "/v1/profiles"}},
		Search:       &SearchClient{resourceClient{client: core, root: "/v1/search"}},
		StickerPacks: &StickerPacksClient{resourceClient{client: core, root: "/v1/sticker-packs"}},
	}
}
