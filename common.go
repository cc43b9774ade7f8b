// common.go: data types shared across API areas
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

// Node describes a member of the Consul catalog. Field names mirror
// Consul's JSON schema verbatim.
type Node struct {
	ID              string            `json:"ID"`
	Node            string            `json:"Node"`
	Address         string            `json:"Address"`
	Datacenter      string            `json:"Datacenter"`
	TaggedAddresses map[string]string `json:"TaggedAddresses"`
	Meta            map[string]string `json:"Meta"`
	CreateIndex     uint64            `json:"CreateIndex"`
	ModifyIndex     uint64            `json:"ModifyIndex"`
}

// TaggedAddress is an additional address registered for a service,
// keyed by tag ("lan", "wan").
type TaggedAddress struct {
	Address string `json:"Address"`
	Port    int    `json:"Port"`
}

// Weights influence how often a service instance is returned in DNS
// SRV responses, depending on its health state.
type Weights struct {
	Passing int `json:"Passing"`
	Warning int `json:"Warning"`
}
