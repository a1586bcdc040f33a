package lark

import (
	"strings"

	larksdk "github.com/larksuite/oapi-sdk-go/v3"
)

const (
	regionFeishu = "feishu"
	regionLark   = "lark"
)

// openBaseURL selects the platform API domain. An explicit base_url wins,
// then region "feishu" switches to the mainland endpoint, otherwise the
// international domain is used.
func (a ResolvedAccount) openBaseURL() string {
	if base := strings.TrimSpace(a.Settings.BaseURL); base != "" {
		return strings.TrimSuffix(base, "/")
	}
	if strings.EqualFold(strings.TrimSpace(a.Settings.Region), regionFeishu) {
		return larksdk.FeishuBaseUrl
	}
	return larksdk.LarkBaseUrl
}

// newAPIClient builds the platform SDK client for an account.
func newAPIClient(a ResolvedAccount) *larksdk.Client {
	return larksdk.NewClient(a.AppID, a.AppSecret, larksdk.WithOpenBaseUrl(a.openBaseURL()))
}
