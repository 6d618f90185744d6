// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package centralhub builds the structured hub shared by the agent's
// workers and the migration orchestrator.
package centralhub

import (
	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v2"

	"github.com/poolferry/poolferry/core/asset"
)

// New returns a new structured hub using yaml marshalling with an
// origin annotation. The post processing ensures that the maps all
// have string keys so they can be marshalled onward as JSON.
func New(origin asset.Address) *pubsub.StructuredHub {
	return pubsub.NewStructuredHub(
		&pubsub.StructuredHubConfig{
			Marshaller: &yamlMarshaller{},
			Annotations: map[string]interface{}{
				"origin": origin.String(),
			},
			PostProcess: ensureStringMaps,
		})
}

type yamlMarshaller struct{}

// Marshal implements Marshaller.
func (*yamlMarshaller) Marshal(v interface{}) ([]byte, error) {
	return yaml.Marshal(v)
}

// Unmarshal implements Marshaller.
func (*yamlMarshaller) Unmarshal(data []byte, v interface{}) error {
	return yaml.Unmarshal(data, v)
}

func ensureStringMaps(in map[string]interface{}) (map[string]interface{}, error) {
	out, err := utils.ConformYAML(in)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return out.(map[string]interface{}), nil
}
