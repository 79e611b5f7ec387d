//go:build stm32f103

package main

const (
	// Clock tree after the TinyGo bluepill runtime init (HSE 8MHz, PLL x9).
	// TIM2 (APB1 x2) and TIM1 (APB2) both count at 72MHz. This is
	// timer.clock_hz in the host configuration.
	PCLK2_HZ = 72000000 // APB2: USART1, TIM1

	// Master timer time base
	// 72MHz / (0xFF+1) = 281.25kHz low counter, overflow every ~233ms,
	// 32-bit wrap every ~4.2 hours.
	MASTER_DIVIDER = 0xFF
	MASTER_CEILING = 0xFFFF

	// Serial configuration
	// "Count Value: 0x12345678\r\n" is 25 bytes; at 115200 8N1 (11520 bytes/s)
	// the loop emits ~460 lines per second.
	UART_BAUD_RATE = 115200

	// USART1 pins on GPIOA (CRH nibbles)
	PIN_USART1_CK = 8
	PIN_USART1_TX = 9
	PIN_USART1_RX = 10
)
