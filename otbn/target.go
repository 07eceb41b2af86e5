package otbn

import (
	"github.com/sarchlab/rtlsim/launcher"
	"github.com/sarchlab/rtlsim/memutil"
	"github.com/sarchlab/rtlsim/model"
)

// SimTarget is the otbn_top_sim binary.
func SimTarget() launcher.Target {
	return target("otbn_top_sim", SimVariant)
}

// CocoTarget is the otbn_top_coco binary.
func CocoTarget() launcher.Target {
	return target("otbn_top_coco", CocoVariant)
}

func target(name string, v Variant) launcher.Target {
	return launcher.Target{
		Name:      name,
		Scope:     v.Scope,
		ClockPort: v.ClockPort,
		ResetPort: v.ResetPort,
		Polarity:  model.ResetPolarityNegative,
		NewTop: func(env launcher.Env) (model.Top, error) {
			top, err := New(v,
				WithScopes(env.Scopes),
				WithProcess(env.Process),
				WithResetPolarity(model.ResetPolarityNegative))
			if err != nil {
				return nil, err
			}
			return top, nil
		},
		NewMemUtil: func(scope string) memutil.Provider {
			return NewMemUtil(scope)
		},
	}
}
