package config

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Config{
				RestBase: "https://rest.example.com", SoapBase: "https://soap.example.com",
				AuthBase: "https://auth.example.com", ClientID: "id", ClientSecret: "secret",
				AccountID: "mid", MaxConcurrency: 4, PageSize: 50,
			},
			wantErr: false,
		},
		{name: "missing everything", cfg: Config{}, wantErr: true},
		{
			name: "zero concurrency",
			cfg: Config{
				RestBase: "r", SoapBase: "s", AuthBase: "a", ClientID: "i",
				ClientSecret: "c", AccountID: "m", MaxConcurrency: 0, PageSize: 50,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveKinds(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{name: "explicit kinds win", cfg: Config{Kinds: []string{"automation", "query"}}, want: 2},
		{name: "quick preset", cfg: Config{Preset: PresetQuick}, want: 3},
		{name: "default full", cfg: Config{}, want: 18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.ResolveKinds()
			if len(got) != tt.want {
				t.Errorf("ResolveKinds() = %v (%d), want %d", got, len(got), tt.want)
			}
		})
	}
}
