package convention

import (
	"fmt"

	"github.com/roach88/modelcore/internal/ir"
)

// FromSpec builds an Implementation from a compiled software type.
func FromSpec(spec *ir.SoftwareTypeSpec) (*Implementation, error) {
	if spec == nil {
		return nil, fmt.Errorf("software type: nil spec")
	}
	impl := &Implementation{Name: spec.Name, ModelPublicType: spec.Model}
	for i, cs := range spec.Conventions {
		switch cs.Kind {
		case ir.ConventionDefaults:
			impl.Conventions = append(impl.Conventions, Defaults(cs.Values))
		case ir.ConventionModelRule:
			impl.Conventions = append(impl.Conventions, &ModelRuleConvention{
				ConventionName: fmt.Sprintf("model_rule[%d]", i),
				Rule:           cs.Rule,
			})
		default:
			return nil, fmt.Errorf("software type %q: conventions[%d]: unknown convention kind %q", spec.Name, i, cs.Kind)
		}
	}
	return impl, nil
}
