// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"io"

	"github.com/gorse-io/dge/common/encoding"
	"github.com/gorse-io/dge/dataset"
	"github.com/juju/errors"
)

// MarshalModel writes the model type, target type and seed followed by the fitted state.
func MarshalModel(w io.Writer, m Model) error {
	// write header
	if err := encoding.WriteString(w, m.ModelType().String()); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteString(w, m.TargetType().String()); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, m.GetParams().GetInt64(RandomState, 0)); err != nil {
		return errors.Trace(err)
	}
	return m.Marshal(w)
}

// UnmarshalModel reads a model written by MarshalModel.
func UnmarshalModel(r io.Reader) (Model, error) {
	// read header
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	modelType, err := ParseModelType(name)
	if err != nil {
		return nil, err
	}
	name, err = encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	targetType, err := dataset.ParseTargetType(name)
	if err != nil {
		return nil, err
	}
	var seed int64
	if err = encoding.ReadGob(r, &seed); err != nil {
		return nil, errors.Trace(err)
	}
	m, err := NewModel(modelType, targetType, seed)
	if err != nil {
		return nil, err
	}
	if err = m.Unmarshal(r); err != nil {
		return nil, errors.Annotatef(err, "unmarshal %v", modelType)
	}
	return m, nil
}
