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
	"encoding/json"
	"reflect"

	"github.com/gorse-io/dge/common/log"
	"go.uber.org/zap"
)

// ParamName is the type of hyper-parameter names.
type ParamName string

const (
	RandomState    ParamName = "RandomState"    // random state (seed)
	C              ParamName = "C"              // inverse regularization strength
	Alpha          ParamName = "Alpha"          // L2 penalty
	Lr             ParamName = "Lr"             // learning rate
	NEpochs        ParamName = "NEpochs"        // maximum number of epochs or iterations
	BatchSize      ParamName = "BatchSize"      // maximum mini-batch size
	Tol            ParamName = "Tol"            // tolerance of the stopping criterion
	NIterNoChange  ParamName = "NIterNoChange"  // epochs without improvement before stopping
	HiddenLayers   ParamName = "HiddenLayers"   // sizes of hidden layers
	NEstimators    ParamName = "NEstimators"    // number of trees
	MaxDepth       ParamName = "MaxDepth"       // maximum depth of trees, 0 means unlimited
	MaxFeatures    ParamName = "MaxFeatures"    // features considered per split, 0 means all and -1 means sqrt
	MinSamplesLeaf ParamName = "MinSamplesLeaf" // minimum number of samples in a leaf
	Bootstrap      ParamName = "Bootstrap"      // draw bootstrap samples for every tree
	NNeighbors     ParamName = "NNeighbors"     // number of neighbors
	Gamma          ParamName = "Gamma"          // kernel coefficient, 0 means 1 / (n_features * var(X))
	Epsilon        ParamName = "Epsilon"        // width of the insensitive tube
	Lambda         ParamName = "Lambda"         // L2 penalty on leaf weights
	MinChildWeight ParamName = "MinChildWeight" // minimum hessian sum in a child
	Bandwidth      ParamName = "Bandwidth"      // kernel bandwidth, 0 means Scott's rule
)

// Params stores hyper-parameters for an estimator. For example, hyper-parameters of
// the default multilayer perceptron are given by:
//
//	model.Params{
//		model.HiddenLayers: []int{100},
//		model.Lr:           0.001,
//		model.NEpochs:      200,
//		model.Alpha:        0.0001,
//	}
type Params map[ParamName]any

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params, len(parameters))
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

func mismatch(name ParamName, expect string, val any) {
	log.Logger().Error("hyper-parameter type mismatch",
		zap.String("name", string(name)),
		zap.String("expect", expect),
		zap.Stringer("actual", reflect.TypeOf(val)))
}

// GetInt gets a integer parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		case int64:
			return int(val)
		default:
			mismatch(name, "int", val)
		}
	}
	return _default
}

// GetInt64 gets a int64 parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			mismatch(name, "int64", val)
		}
	}
	return _default
}

// GetBool gets a bool parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetBool(name ParamName, _default bool) bool {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case bool:
			return val
		default:
			mismatch(name, "bool", val)
		}
	}
	return _default
}

// GetFloat64 gets a float parameter by name. Integers are converted.
func (parameters Params) GetFloat64(name ParamName, _default float64) float64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float64:
			return val
		case float32:
			return float64(val)
		case int:
			return float64(val)
		default:
			mismatch(name, "float64", val)
		}
	}
	return _default
}

// GetInts gets a list of integers by name.
func (parameters Params) GetInts(name ParamName, _default []int) []int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case []int:
			return val
		default:
			mismatch(name, "[]int", val)
		}
	}
	return _default
}

func (parameters Params) Overwrite(params Params) Params {
	merged := parameters.Copy()
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

func (parameters Params) String() string {
	b, err := json.Marshal(parameters)
	if err != nil {
		log.Logger().Error("failed to marshal hyper-parameters", zap.Error(err))
		return ""
	}
	return string(b)
}
