package config

import (
	"sync"
	"testing"
)

func TestPricingRegistryEmbeddedDefaults(t *testing.T) {
	r, err := NewPricingRegistry("")
	if err != nil {
		t.Fatalf("load embedded table: %v", err)
	}
	if r.USDPerCredit() <= 0 {
		t.Errorf("usd_per_credit = %f", r.USDPerCredit())
	}
	known := r.ModelPricing("gpt-4o")
	if known.InputPerMillion <= 0 || known.OutputPerMillion <= 0 {
		t.Errorf("gpt-4o pricing = %+v", known)
	}
	fallback := r.ModelPricing("modelo-desconocido")
	if fallback.InputPerMillion <= 0 {
		t.Errorf("default pricing = %+v", fallback)
	}
}

func TestPricingRegistryConcurrentReads(t *testing.T) {
	r, err := NewPricingRegistry("")
	if err != nil {
		t.Fatalf("load embedded table: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.USDPerCredit()
				_ = r.ModelPricing("gpt-4o")
				_ = r.ModelPricing("otro")
			}
		}()
	}
	wg.Wait()
}
