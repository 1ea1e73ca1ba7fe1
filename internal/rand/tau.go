// Package rand provides the pseudo-random generators used by the approximate
// neighbor search: a Tausworthe generator for the hot loops and a Mersenne
// Twister that turns a user seed into the Tausworthe state.
package rand

// State holds the internal state of the Tausworthe PRNG.
type State [3]int64

// New creates a new random state from a seed.
func New(seed int64) State {
	s := State{}
	s[0] = seed
	if s[0] == 0 {
		s[0] = 1
	}
	s[1] = s[0]*6364136223846793005 + 1442695040888963407
	s[2] = s[1]*6364136223846793005 + 1442695040888963407
	for range 10 {
		Int(&s)
	}
	return s
}

// FromSeed draws the three state words from a Mersenne Twister seeded with
// seed, each in [INT32_MIN+1, INT32_MAX-1).
func FromSeed(seed int64) State {
	mt := NewMT19937(uint32(seed))
	var s State
	for i := range s {
		s[i] = int64(mt.RandRange(-(1<<31)+1, (1<<31)-2))
	}
	return s
}

// Int generates a pseudo-random int32 using the Tausworthe algorithm.
func Int(state *State) int32 {
	state[0] = (((state[0] & 4294967294) << 12) & 0xFFFFFFFF) ^
		((((state[0] << 13) & 0xFFFFFFFF) ^ state[0]) >> 19)
	state[1] = (((state[1] & 4294967288) << 4) & 0xFFFFFFFF) ^
		((((state[1] << 2) & 0xFFFFFFFF) ^ state[1]) >> 25)
	state[2] = (((state[2] & 4294967280) << 17) & 0xFFFFFFFF) ^
		((((state[2] << 3) & 0xFFFFFFFF) ^ state[2]) >> 11)
	return int32(state[0] ^ state[1] ^ state[2])
}

// Float32 generates a pseudo-random float32 in [0, 1).
func Float32(state *State) float32 {
	i := Int(state)
	if i < 0 {
		i = -i
	}
	return float32(i) / float32(0x7FFFFFFF)
}

// Intn returns a non-negative pseudo-random int in [0, n).
func Intn(state *State, n int) int {
	if n <= 0 {
		return 0
	}
	i := int64(Int(state))
	if i < 0 {
		i = -i
	}
	return int(i % int64(n))
}

// Shuffle randomly shuffles a slice of int32.
func Shuffle(state *State, arr []int32) {
	for i := len(arr) - 1; i > 0; i-- {
		j := Intn(state, i+1)
		arr[i], arr[j] = arr[j], arr[i]
	}
}
